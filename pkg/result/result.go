// Package result builds the uniform response envelope returned by every
// account operation.
package result

import (
	"fmt"
	"strings"
)

// Result is the envelope written as the body of every API response.
type Result struct {
	HTTPStatus       int         `json:"http_status"`
	GenericStatus    GenericCode `json:"rv_status_code"`
	VFenseStatusCode Code        `json:"vfense_status_code"`
	Message          string      `json:"message"`
	Data             []any       `json:"data"`
	Username         string      `json:"username"`
	URI              string      `json:"uri"`
	HTTPMethod       string      `json:"http_method"`
}

// Succeeded returns true if the result carries a 2xx status.
func (r *Result) Succeeded() bool {
	return r.HTTPStatus >= 200 && r.HTTPStatus < 300
}

// Is reports whether the result carries the given entity code.
func (r *Result) Is(code Code) bool {
	return r.VFenseStatusCode == code
}

// Meta echoes the caller details into every result.
type Meta struct {
	Username string
	URI      string
	Method   string
}

// Builder creates results for a single caller.
type Builder struct {
	meta Meta
}

// New creates a builder for the acting user and request.
func New(meta Meta) *Builder {
	return &Builder{meta: meta}
}

// Meta returns the caller details the builder echoes.
func (b *Builder) Meta() Meta {
	return b.meta
}

// Build creates a result with an explicit outcome.
func (b *Builder) Build(generic GenericCode, code Code, message string, data ...any) *Result {
	if data == nil {
		data = []any{}
	}
	return &Result{
		HTTPStatus:       generic.HTTPStatus(),
		GenericStatus:    generic,
		VFenseStatusCode: code,
		Message:          message,
		Data:             data,
		Username:         b.meta.Username,
		URI:              b.meta.URI,
		HTTPMethod:       b.meta.Method,
	}
}

// Retrieved wraps data returned by a read.
func (b *Builder) Retrieved(data ...any) *Result {
	return b.Build(InformationRetrieved, InformationReturned,
		fmt.Sprintf("%s - data was retrieved", b.meta.Username), data...)
}

// InvalidID reports that the named object does not exist.
func (b *Builder) InvalidID(id, kind string, code Code) *Result {
	return b.Build(InvalidId, code, fmt.Sprintf("%s - %s %s does not exist", b.meta.Username, kind, id), id)
}

// IncorrectArgs reports a malformed request.
func (b *Builder) IncorrectArgs(reason string) *Result {
	return b.Build(IncorrectArguments, BadArguments, fmt.Sprintf("%s - incorrect arguments: %s", b.meta.Username, reason))
}

// Forbidden reports that the caller lacks a capability.
func (b *Builder) Forbidden(permission string, code Code) *Result {
	return b.Build(PermissionDenied, code,
		fmt.Sprintf("%s - permission denied: %s is required", b.meta.Username, permission))
}

// Unauthorized reports a failed authentication.
func (b *Builder) Unauthorized(code Code, reason string) *Result {
	return b.Build(AuthenticationFailed, code, fmt.Sprintf("%s - %s", b.meta.Username, reason))
}

// SomethingBroke reports an unexpected failure without leaking its cause.
func (b *Builder) SomethingBroke(object string) *Result {
	return b.Build(SomethingBroke, InternalError,
		fmt.Sprintf("%s - something broke while processing %s", b.meta.Username, object))
}

// JoinNames renders a list of names for messages.
func JoinNames(names []string) string {
	return strings.Join(names, ", ")
}

// Strings converts names into envelope data.
func Strings(names []string) []any {
	data := make([]any, 0, len(names))
	for _, n := range names {
		data = append(data, n)
	}
	return data
}
