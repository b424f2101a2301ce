package shared

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Global validator instance for reuse
var validate = validator.New()

// ValidateRequest validates the given struct using the validator package.
func ValidateRequest(v interface{}) error {
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}
	return validate.Struct(v)
}

// FormBool reads a boolean form field. Missing or unparsable values yield def.
// The form must already be parsed.
func FormBool(r *http.Request, key string, def bool) bool {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// Header returns the trimmed value of a request header.
func Header(r *http.Request, name string) string {
	return strings.TrimSpace(r.Header.Get(name))
}
