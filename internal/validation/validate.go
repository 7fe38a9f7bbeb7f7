package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deppfellow/render-api/internal/errs"
	goskema "github.com/reoring/goskema"
)

// Violation codes reported in errs.FieldError.Code.
const (
	CodeRequired     = goskema.CodeRequired
	CodeInvalidType  = goskema.CodeInvalidType
	CodeInvalidUnion = "invalid_union"
	CodeTooSmall     = goskema.CodeTooSmall
	CodeTooBig       = goskema.CodeTooBig
	CodeInvalidEnum  = "invalid_enum_value"
	CodeInvalidValue = "invalid_value"
)

// Result is the outcome of Validate: either a valid Value or a list of Violations.
//
// A payload is never partially accepted; Value is nil whenever Violations is not empty.
type Result struct {
	Value      map[string]any
	Violations []errs.FieldError
}

// Valid reports whether the payload matched the shape.
func (r Result) Valid() bool {
	return len(r.Violations) == 0
}

// Validate parses input (as produced by encoding/json into an `any`) with shape.
//
// Unknown keys are dropped and defaults applied when the shape says so. Every
// goskema issue becomes a violation carrying a dotted field path.
func Validate(ctx context.Context, shape Shape, input any) Result {
	value, err := shape.Parse(ctx, input)
	if err != nil {
		return Result{Violations: violations(err, input)}
	}
	return Result{Value: value}
}

func violations(err error, input any) []errs.FieldError {
	issues, ok := goskema.AsIssues(err)
	if !ok {
		return []errs.FieldError{{Path: "", Code: goskema.CodeParseError, Message: "Invalid input"}}
	}

	out := make([]errs.FieldError, 0, len(issues))
	for _, issue := range issues {
		out = append(out, errs.FieldError{
			Path:    fieldPath(issue.Path),
			Code:    issue.Code,
			Message: issueMessage(issue, input),
		})
	}
	return out
}

// issueMessage replaces goskema's generic messages for the issues it raises
// itself (missing fields, non-object values).
func issueMessage(issue goskema.Issue, input any) string {
	switch issue.Code {
	case goskema.CodeRequired:
		return "Required"
	case goskema.CodeInvalidType:
		if expected, ok := strings.CutPrefix(issue.Hint, "expected "); ok {
			return fmt.Sprintf("Expected %s, received %s", expected, jsonTypeName(valueAt(input, issue.Path)))
		}
	}
	if issue.Message != "" {
		return issue.Message
	}
	return "Invalid input"
}

// fieldPath turns a JSON pointer such as "/options/quality" into "options.quality".
func fieldPath(pointer string) string {
	return strings.Join(segments(pointer), ".")
}

func segments(pointer string) []string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return nil
	}
	return strings.Split(pointer, "/")
}

func valueAt(input any, pointer string) any {
	v := input
	for _, key := range segments(pointer) {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = obj[key]
	}
	return v
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
