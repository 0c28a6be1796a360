package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindAndValidate decodes the request body into dst and runs it through
// the package validator, writing a VALIDATION envelope (with per-field
// details) on failure. Mirrors wisbric-nightowl's DecodeAndValidate
// pattern, adapted to gin's ShouldBindJSON.
func bindAndValidate(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, errValidation(map[string]any{"body": err.Error()}))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(c, errValidation(fieldErrors(err)))
		return false
	}
	return true
}

// fieldErrors renders a validator.ValidationErrors into the §6 envelope
// details map, keyed by snake_case field name.
func fieldErrors(err error) map[string]any {
	out := map[string]any{}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["error"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[toSnakeCase(fe.Field())] = fieldErrorMessage(fe)
	}
	return out
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	case "email":
		return "must be a valid email address"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return "failed validation: " + fe.Tag()
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
