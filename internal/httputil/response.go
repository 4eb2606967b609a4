package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/tendant/vfense-accounts/pkg/result"
)

// StatusCodeHeader carries the vfense status code of an envelope response.
const StatusCodeHeader = "X-Vfense-Status-Code"

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the body written by Error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Error writes a plain JSON error for failures that happen outside any account operation.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// WriteResult writes an envelope using its own HTTP status.
func WriteResult(w http.ResponseWriter, r *result.Result) {
	w.Header().Set(StatusCodeHeader, strconv.Itoa(int(r.VFenseStatusCode)))
	JSON(w, r.HTTPStatus, r)
}

// Meta builds the envelope caller details for a request.
func Meta(r *http.Request, username string) result.Meta {
	return result.Meta{Username: username, URI: r.URL.RequestURI(), Method: r.Method}
}

// DecodeJSON decodes the request body into v. An empty body leaves v untouched.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
