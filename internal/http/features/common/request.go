// Package common holds request helpers shared by the feature handlers.
package common

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tendant/vfense-accounts/internal/http/middleware"
	"github.com/tendant/vfense-accounts/internal/httputil"
	"github.com/tendant/vfense-accounts/pkg/result"
)

// NameList decodes either a JSON array of names or a single comma separated string.
type NameList []string

func (l *NameList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = clean(list)
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("expected a list of names or a comma separated string")
	}
	*l = SplitNames(joined)
	return nil
}

// SplitNames splits a comma separated string, dropping blanks.
func SplitNames(s string) []string {
	return clean(strings.Split(s, ","))
}

func clean(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Flag decodes "yes"/"no", "true"/"false" or a JSON boolean.
type Flag struct {
	Set   bool
	Value bool
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag{Set: true, Value: b}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected yes or no")
	}
	v, ok := ParseYesNo(s)
	if !ok {
		return fmt.Errorf("expected yes or no, got %q", s)
	}
	*f = Flag{Set: true, Value: v}
	return nil
}

// ParseYesNo parses the boolean spellings accepted in bodies and query strings.
func ParseYesNo(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	}
	b, err := strconv.ParseBool(s)
	return b, err == nil
}

// Builder returns a result builder for the authenticated caller of r.
func Builder(r *http.Request) *result.Builder {
	return result.New(Meta(r))
}

// Meta returns the caller details of r.
func Meta(r *http.Request) result.Meta {
	username, _ := middleware.GetUsername(r.Context())
	return httputil.Meta(r, username)
}

// Caller returns the authenticated username.
func Caller(r *http.Request) string {
	username, _ := middleware.GetUsername(r.Context())
	return username
}

// Decode reads the JSON body of r into v. On failure it writes the error
// envelope and returns false.
func Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		if middleware.IsBodyTooLarge(err) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		httputil.WriteResult(w, Builder(r).IncorrectArgs("invalid request body: "+err.Error()))
		return false
	}
	return true
}
