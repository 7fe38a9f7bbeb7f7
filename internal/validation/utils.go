package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	goskema "github.com/reoring/goskema"
)

// validate is shared by every request. validator.Validate caches parsed tags and is
// safe for concurrent use.
var validate = validator.New()

// checkRule applies rule to value. It returns the issue and true when the value
// fails.
func checkRule(rule Rule, value any) (issue goskema.Issue, failed bool) {
	defer func() {
		// validator panics on malformed tags; report it instead of crashing the request.
		if r := recover(); r != nil {
			issue = goskema.Issue{
				Path:    "/",
				Code:    CodeInvalidValue,
				Message: fmt.Sprintf("invalid rule %q", rule.Tag),
			}
			failed = true
		}
	}()

	err := validate.Var(value, rule.Tag)
	if err == nil {
		return goskema.Issue{}, false
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return goskema.Issue{Path: "/", Code: CodeInvalidValue, Message: err.Error()}, true
	}

	code, msg := describe(validationErrors[0])
	if rule.Message != "" {
		msg = rule.Message
	}
	return goskema.Issue{Path: "/", Code: code, Message: msg, Rule: validationErrors[0].Tag()}, true
}

// describe converts a validator.FieldError into a violation code and a
// user-friendly message.
func describe(err validator.FieldError) (string, string) {
	isString := err.Kind() == reflect.String

	switch err.Tag() {
	case "required":
		return CodeRequired, "is required"

	case "min", "gte":
		// min tag means:
		// - for strings: minimum length
		// - for numbers: minimum value
		if isString {
			return CodeTooSmall, fmt.Sprintf("must be at least %s characters", err.Param())
		}
		return CodeTooSmall, fmt.Sprintf("must be at least %s", err.Param())

	case "max", "lte":
		if isString {
			return CodeTooBig, fmt.Sprintf("must not exceed %s characters", err.Param())
		}
		return CodeTooBig, fmt.Sprintf("must not exceed %s", err.Param())

	case "gt":
		return CodeTooSmall, fmt.Sprintf("must be greater than %s", err.Param())

	case "lt":
		return CodeTooBig, fmt.Sprintf("must be less than %s", err.Param())

	case "oneof":
		return CodeInvalidEnum, fmt.Sprintf("must be one of: %s", strings.Join(strings.Fields(err.Param()), ", "))

	case "hexcolor", "rgb", "rgba", "hsl", "hsla", "iscolor":
		return CodeInvalidValue, "must be a valid color"

	case "url", "uri":
		return CodeInvalidValue, "must be a valid URL"

	default:
		// Fallback for tags not explicitly handled above.
		if err.Param() != "" {
			return CodeInvalidValue, fmt.Sprintf("failed %s:%s", err.Tag(), err.Param())
		}
		return CodeInvalidValue, fmt.Sprintf("failed %s", err.Tag())
	}
}
