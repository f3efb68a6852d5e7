// Package handler provides the typed request/response plumbing shared by
// every HTTP module: a generic wrapper that binds the request into a struct,
// a Response interface, and JSON response constructors with a uniform error
// envelope.
package handler

import (
	"context"
	"net/http"
)

// HandlerFunc is a typed HTTP handler: the request is bound into R before
// the function runs, and the returned Response renders itself.
type HandlerFunc[R any] func(ctx context.Context, req R) Response

// Response renders itself to the ResponseWriter, setting headers and status.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Wrap adapts a HandlerFunc into http.HandlerFunc. Binders run in order;
// a binder failure short-circuits into a bad-request response.
func Wrap[R any](fn HandlerFunc[R], binders ...func(r *http.Request, v any) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req R
		for _, bind := range binders {
			if err := bind(r, &req); err != nil {
				_ = JSONError(NewHTTPError(http.StatusBadRequest, err.Error())).Render(w, r)
				return
			}
		}

		resp := fn(r.Context(), req)
		if resp == nil {
			resp = NoContent()
		}
		if err := resp.Render(w, r); err != nil {
			// Headers are likely already written; nothing sensible left to do.
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}
