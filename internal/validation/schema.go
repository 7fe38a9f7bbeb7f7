package validation

import (
	"context"
	"encoding/json"
	"fmt"

	goskema "github.com/reoring/goskema"
	g "github.com/reoring/goskema/dsl"
	js "github.com/reoring/goskema/jsonschema"
)

// Shape is the schema of a whole request body.
type Shape = goskema.Schema[map[string]any]

// Rule is a go-playground/validator tag checked once a value has the right type.
// Message, when set, replaces the generated message.
type Rule struct {
	Tag     string
	Message string
}

// String accepts JSON strings that pass every rule.
func String(rules ...Rule) goskema.Schema[string] {
	return withRules[string](typed[string]{Schema: g.String(), name: "string", accepts: isType[string]}, rules)
}

// Number accepts JSON numbers that pass every rule and yields them as float64.
func Number(rules ...Rule) goskema.Schema[float64] {
	return withRules[float64](typed[float64]{Schema: number{}, name: "number", accepts: isNumber}, rules)
}

func Bool() goskema.Schema[bool] {
	return typed[bool]{Schema: g.Bool(), name: "boolean", accepts: isType[bool]}
}

// Any accepts every JSON value, null included.
func Any() goskema.Schema[any] {
	return anything{}
}

func withRules[T any](s goskema.Schema[T], rules []Rule) goskema.Schema[T] {
	if len(rules) == 0 {
		return s
	}
	return ruled[T]{Schema: s, rules: rules}
}

func decoded[T any](v T) goskema.Decoded[T] {
	return goskema.Decoded[T]{Value: v, Presence: goskema.PresenceMap{"/": goskema.PresenceSeen}}
}

func isType[T any](v any) bool {
	_, ok := v.(T)
	return ok
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, json.Number:
		return true
	}
	return false
}

func typeIssue(expected string, v any) goskema.Issues {
	return goskema.Issues{{
		Path:    "/",
		Code:    CodeInvalidType,
		Message: fmt.Sprintf("Expected %s, received %s", expected, jsonTypeName(v)),
	}}
}

// typed reports type mismatches with the expected and received JSON types
// before handing the value to the wrapped schema.
type typed[T any] struct {
	goskema.Schema[T]
	name    string
	accepts func(any) bool
}

func (s typed[T]) Parse(ctx context.Context, v any) (T, error) {
	if !s.accepts(v) {
		var zero T
		return zero, typeIssue(s.name, v)
	}
	return s.Schema.Parse(ctx, v)
}

func (s typed[T]) ParseWithMeta(ctx context.Context, v any) (goskema.Decoded[T], error) {
	out, err := s.Parse(ctx, v)
	return decoded(out), err
}

func (s typed[T]) TypeCheck(ctx context.Context, v any) error {
	if !s.accepts(v) {
		return typeIssue(s.name, v)
	}
	return s.Schema.TypeCheck(ctx, v)
}

func (s typed[T]) Validate(ctx context.Context, v any) error {
	_, err := s.Parse(ctx, v)
	return err
}

// ruled checks validator rules after the wrapped schema accepted the value.
type ruled[T any] struct {
	goskema.Schema[T]
	rules []Rule
}

func (s ruled[T]) Parse(ctx context.Context, v any) (T, error) {
	out, err := s.Schema.Parse(ctx, v)
	if err != nil {
		return out, err
	}
	if err := s.ValidateValue(ctx, out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (s ruled[T]) ParseWithMeta(ctx context.Context, v any) (goskema.Decoded[T], error) {
	out, err := s.Parse(ctx, v)
	return decoded(out), err
}

func (s ruled[T]) RuleCheck(ctx context.Context, v any) error {
	if tv, ok := v.(T); ok {
		return s.ValidateValue(ctx, tv)
	}
	return nil
}

func (s ruled[T]) Validate(ctx context.Context, v any) error {
	_, err := s.Parse(ctx, v)
	return err
}

func (s ruled[T]) ValidateValue(ctx context.Context, v T) error {
	if err := s.Schema.ValidateValue(ctx, v); err != nil {
		return err
	}
	for _, rule := range s.rules {
		if issue, failed := checkRule(rule, v); failed {
			return goskema.Issues{issue}
		}
	}
	return nil
}

// number reads JSON numbers through goskema's json.Number schema.
type number struct{}

func (number) Parse(ctx context.Context, v any) (float64, error) {
	n, err := g.NumberJSON().Parse(ctx, v)
	if err != nil {
		return 0, err
	}
	f, err := n.Float64()
	if err != nil {
		return 0, typeIssue("number", v)
	}
	return f, nil
}

func (s number) ParseWithMeta(ctx context.Context, v any) (goskema.Decoded[float64], error) {
	out, err := s.Parse(ctx, v)
	return decoded(out), err
}

func (number) TypeCheck(ctx context.Context, v any) error {
	return g.NumberJSON().TypeCheck(ctx, v)
}

func (number) RuleCheck(context.Context, any) error { return nil }

func (s number) Validate(ctx context.Context, v any) error {
	_, err := s.Parse(ctx, v)
	return err
}

func (number) ValidateValue(context.Context, float64) error { return nil }

func (number) JSONSchema() (*js.Schema, error) { return &js.Schema{Type: "number"}, nil }

type anything struct{}

func (anything) Parse(_ context.Context, v any) (any, error) { return v, nil }

func (anything) ParseWithMeta(_ context.Context, v any) (goskema.Decoded[any], error) {
	return decoded(v), nil
}

func (anything) TypeCheck(context.Context, any) error     { return nil }
func (anything) RuleCheck(context.Context, any) error     { return nil }
func (anything) Validate(context.Context, any) error      { return nil }
func (anything) ValidateValue(context.Context, any) error { return nil }
func (anything) JSONSchema() (*js.Schema, error)          { return &js.Schema{}, nil }

// Alternative is one branch of a OneOf union.
type Alternative struct {
	parse  func(context.Context, any) (any, error)
	schema func() (*js.Schema, error)
}

// Alt wraps s as a union branch.
func Alt[T any](s goskema.Schema[T]) Alternative {
	return Alternative{
		parse: func(ctx context.Context, v any) (any, error) {
			return s.Parse(ctx, v)
		},
		schema: s.JSONSchema,
	}
}

// OneOf accepts a value matching any alternative, tried in order. The first
// match wins. goskema only ships discriminated unions, and the wire format here
// mixes primitives with objects.
func OneOf(alts ...Alternative) goskema.Schema[any] {
	return oneOf{alts: alts}
}

type oneOf struct {
	alts []Alternative
}

func (u oneOf) Parse(ctx context.Context, v any) (any, error) {
	for _, alt := range u.alts {
		if out, err := alt.parse(ctx, v); err == nil {
			return out, nil
		}
	}
	return nil, goskema.Issues{{Path: "/", Code: CodeInvalidUnion, Message: "Invalid input"}}
}

func (u oneOf) ParseWithMeta(ctx context.Context, v any) (goskema.Decoded[any], error) {
	out, err := u.Parse(ctx, v)
	return decoded(out), err
}

func (u oneOf) TypeCheck(ctx context.Context, v any) error {
	_, err := u.Parse(ctx, v)
	return err
}

func (oneOf) RuleCheck(context.Context, any) error { return nil }

func (u oneOf) Validate(ctx context.Context, v any) error {
	_, err := u.Parse(ctx, v)
	return err
}

func (u oneOf) ValidateValue(ctx context.Context, v any) error {
	_, err := u.Parse(ctx, v)
	return err
}

func (u oneOf) JSONSchema() (*js.Schema, error) {
	out := &js.Schema{}
	for _, alt := range u.alts {
		s, err := alt.schema()
		if err != nil {
			return nil, err
		}
		out.OneOf = append(out.OneOf, s)
	}
	return out, nil
}
