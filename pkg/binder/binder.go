// Package binder populates request structs from JSON bodies, query strings
// and chi path parameters. Each binder processes only its own struct tags,
// so several can be applied to one request type.
package binder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

var (
	ErrUnsupportedMediaType = errors.New("binder: unsupported media type")
	ErrFailedToParseJSON    = errors.New("binder: failed to parse json body")
	ErrFailedToBind         = errors.New("binder: failed to bind value")
)

// maxJSONBody caps request bodies at 1MB; compose bodies are text, nothing
// legitimate comes close.
const maxJSONBody = 1 << 20

// Bind is the signature shared by all binders.
type Bind func(r *http.Request, v any) error

// JSON decodes an application/json body into v. Requests without a body are
// left untouched so the binder can be combined with Path on GET routes.
func JSON() Bind {
	return func(r *http.Request, v any) error {
		if r.Body == nil || r.ContentLength == 0 {
			return nil
		}

		mediaType := r.Header.Get("Content-Type")
		if idx := strings.Index(mediaType, ";"); idx != -1 {
			mediaType = strings.TrimSpace(mediaType[:idx])
		}
		if mediaType != "application/json" {
			return fmt.Errorf("%w: got %q", ErrUnsupportedMediaType, mediaType)
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
		if err != nil {
			return errors.Join(ErrFailedToParseJSON, err)
		}
		if err := json.Unmarshal(body, v); err != nil {
			return errors.Join(ErrFailedToParseJSON, err)
		}
		return nil
	}
}

// Path fills fields tagged `path:"name"` from chi route parameters.
func Path() Bind {
	return func(r *http.Request, v any) error {
		return bindTagged(v, "path", func(name string) (string, bool) {
			val := chi.URLParam(r, name)
			return val, val != ""
		})
	}
}

// Query fills fields tagged `query:"name"` from the URL query string.
func Query() Bind {
	return func(r *http.Request, v any) error {
		q := r.URL.Query()
		return bindTagged(v, "query", func(name string) (string, bool) {
			if !q.Has(name) {
				return "", false
			}
			return q.Get(name), true
		})
	}
}

func bindTagged(v any, tag string, lookup func(name string) (string, bool)) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: target must be a non-nil struct pointer", ErrFailedToBind)
	}

	rv = rv.Elem()
	rt := rv.Type()
	for i := range rt.NumField() {
		name, ok := rt.Field(i).Tag.Lookup(tag)
		if !ok || name == "" || name == "-" {
			continue
		}
		raw, found := lookup(name)
		if !found {
			continue
		}
		if err := setField(rv.Field(i), raw); err != nil {
			return fmt.Errorf("%w: field %s: %v", ErrFailedToBind, name, err)
		}
	}
	return nil
}

func setField(f reflect.Value, raw string) error {
	if !f.CanSet() {
		return errors.New("field is not settable")
	}
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		f.SetUint(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}
	return nil
}
