package handler

import (
	"encoding/json"
	"errors"
	"net/http"
)

// envelope is the wire shape of every JSON response.
type envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   envelope
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON renders data with a 200 status.
func JSON(data any) Response {
	return JSONWithStatus(data, http.StatusOK)
}

// JSONWithStatus renders data with an explicit status code.
func JSONWithStatus(data any, status int) Response {
	return jsonResponse{status: status, body: envelope{Success: true, Data: data}}
}

// JSONError maps an error onto the response envelope. ValidationError
// becomes 400 with field details, HTTPError keeps its own status, anything
// else is a generic 500 — the concrete failure stays in the server log, the
// operator sees only a "failed to ..." style message.
func JSONError(err error) Response {
	status := http.StatusInternalServerError
	detail := &errorDetail{Code: "internal_error", Message: "something went wrong"}

	var valErr ValidationError
	var httpErr HTTPError
	switch {
	case errors.As(err, &valErr):
		status = http.StatusBadRequest
		detail.Code = "validation_error"
		detail.Message = valErr.Error()
		if len(valErr) > 0 {
			detail.Details = valErr
		}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		detail.Code = httpErr.Key
		detail.Message = httpErr.Message
		if detail.Message == "" {
			detail.Message = http.StatusText(httpErr.Code)
		}
	}

	return jsonResponse{status: status, body: envelope{Success: false, Error: detail}}
}

// NoContent renders an empty 204 response.
func NoContent() Response {
	return noContentResponse{}
}

type noContentResponse struct{}

func (noContentResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Text renders a plain-text body, used by the compose copy endpoint.
func Text(body string) Response {
	return textResponse{body: body}
}

type textResponse struct {
	body string
}

func (t textResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write([]byte(t.body))
	return err
}
