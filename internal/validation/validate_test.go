package validation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/deppfellow/render-api/internal/errs"
	g "github.com/reoring/goskema/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testShape = g.Object().
	Field("html", g.SchemaOf(String(Rule{Tag: "min=1", Message: "HTML string cannot be empty"}))).Required().
	Field("options", g.SchemaOf(g.Object().
		Field("width", g.SchemaOf(Number())).
		Field("quality", g.SchemaOf(Number(Rule{Tag: "gte=0,lte=1"}))).
		Field("mimeType", g.SchemaOf(String(Rule{Tag: "oneof=image/png image/jpeg image/webp"}))).
		Field("style", g.SchemaOf(Any())).
		UnknownStrip().
		MustBuild())).
	Field("strict", g.SchemaOf(OneOf(
		Alt(Bool()),
		Alt(String(Rule{Tag: "oneof=ignore warn error"})),
	))).
	Field("macros", g.MapOf(OneOf(
		Alt(String()),
		Alt(g.Object().
			Field("definition", g.SchemaOf(String())).Required().
			Field("numArgs", g.SchemaOf(Number(Rule{Tag: "gte=0,lte=9"}))).
			UnknownStrip().
			MustBuild()),
	))).
	Field("download", g.SchemaOf(Bool())).Default(false).
	Field("filename", g.SchemaOf(String())).
	UnknownStrip().
	MustBuild()

func decodeJSON(t *testing.T, body string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantValid  bool
		wantValue  map[string]any
		violations []errs.FieldError
	}{
		{
			name:      "minimal valid payload gets defaults",
			body:      `{"html":"<p>hi</p>"}`,
			wantValid: true,
			wantValue: map[string]any{"html": "<p>hi</p>", "download": false},
		},
		{
			name:      "unknown keys are dropped",
			body:      `{"html":"x","extra":1,"options":{"nope":true}}`,
			wantValid: true,
			wantValue: map[string]any{"html": "x", "download": false, "options": map[string]any{}},
		},
		{
			name:      "explicit value beats default",
			body:      `{"html":"x","download":true,"filename":"chart"}`,
			wantValid: true,
			wantValue: map[string]any{"html": "x", "download": true, "filename": "chart"},
		},
		{
			name: "missing required field",
			body: `{}`,
			violations: []errs.FieldError{
				{Path: "html", Code: CodeRequired, Message: "Required"},
			},
		},
		{
			name: "empty string uses custom message",
			body: `{"html":""}`,
			violations: []errs.FieldError{
				{Path: "html", Code: CodeTooSmall, Message: "HTML string cannot be empty"},
			},
		},
		{
			name: "wrong primitive types",
			body: `{"html":42,"download":"yes"}`,
			violations: []errs.FieldError{
				{Path: "download", Code: CodeInvalidType, Message: "Expected boolean, received string"},
				{Path: "html", Code: CodeInvalidType, Message: "Expected string, received number"},
			},
		},
		{
			name: "nested out of range and enum",
			body: `{"html":"x","options":{"quality":1.5,"mimeType":"image/gif"}}`,
			violations: []errs.FieldError{
				{Path: "options.mimeType", Code: CodeInvalidEnum, Message: "must be one of: image/png, image/jpeg, image/webp"},
				{Path: "options.quality", Code: CodeTooBig, Message: "must not exceed 1"},
			},
		},
		{
			name: "negative quality",
			body: `{"html":"x","options":{"quality":-0.1}}`,
			violations: []errs.FieldError{
				{Path: "options.quality", Code: CodeTooSmall, Message: "must be at least 0"},
			},
		},
		{
			name: "options must be an object",
			body: `{"html":"x","options":[]}`,
			violations: []errs.FieldError{
				{Path: "options", Code: CodeInvalidType, Message: "Expected object, received array"},
			},
		},
		{
			name:      "union accepts boolean and enum",
			body:      `{"html":"x","strict":"warn"}`,
			wantValid: true,
			wantValue: map[string]any{"html": "x", "download": false, "strict": "warn"},
		},
		{
			name: "union rejects other values",
			body: `{"html":"x","strict":"loud"}`,
			violations: []errs.FieldError{
				{Path: "strict", Code: CodeInvalidUnion, Message: "Invalid input"},
			},
		},
		{
			name:      "record of string or macro object",
			body:      `{"html":"x","macros":{"\\R":"\\mathbb{R}","\\p":{"definition":"#1^2","numArgs":1}}}`,
			wantValid: true,
			wantValue: map[string]any{
				"html":     "x",
				"download": false,
				"macros": map[string]any{
					`\R`: `\mathbb{R}`,
					`\p`: map[string]any{"definition": "#1^2", "numArgs": float64(1)},
				},
			},
		},
		{
			name: "record element failures carry the key",
			body: `{"html":"x","macros":{"\\a":1,"\\b":"ok"}}`,
			violations: []errs.FieldError{
				{Path: `macros.\a`, Code: CodeInvalidUnion, Message: "Invalid input"},
			},
		},
		{
			name: "record element rules apply",
			body: `{"html":"x","macros":{"\\p":{"definition":"#1","numArgs":12}}}`,
			violations: []errs.FieldError{
				{Path: `macros.\p`, Code: CodeInvalidUnion, Message: "Invalid input"},
			},
		},
		{
			name: "null options",
			body: `{"html":"x","options":null}`,
			violations: []errs.FieldError{
				{Path: "options", Code: CodeInvalidType, Message: "Expected object, received null"},
			},
		},
		{
			name:      "any accepts null",
			body:      `{"html":"x","options":{"style":null}}`,
			wantValid: true,
			wantValue: map[string]any{"html": "x", "download": false, "options": map[string]any{"style": nil}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(context.Background(), testShape, decodeJSON(t, tt.body))

			assert.Equal(t, tt.wantValid, result.Valid())
			if tt.wantValid {
				assert.Equal(t, tt.wantValue, result.Value)
				assert.Empty(t, result.Violations)
				return
			}
			assert.Nil(t, result.Value, "invalid payloads must never be partially accepted")
			assert.Equal(t, tt.violations, result.Violations)
		})
	}
}

func TestValidateNonObjectRoot(t *testing.T) {
	for _, body := range []string{`null`, `"x"`, `[1,2]`, `3`, `true`} {
		t.Run(body, func(t *testing.T) {
			result := Validate(context.Background(), testShape, decodeJSON(t, body))
			require.False(t, result.Valid())
			require.Len(t, result.Violations, 1)
			assert.Equal(t, "", result.Violations[0].Path)
			assert.Equal(t, CodeInvalidType, result.Violations[0].Code)
		})
	}
}

func TestValidateNonObjectRootMessage(t *testing.T) {
	result := Validate(context.Background(), testShape, decodeJSON(t, `["x"]`))

	assert.Equal(t, []errs.FieldError{
		{Path: "", Code: CodeInvalidType, Message: "Expected object, received array"},
	}, result.Violations)
}

func TestValidateNumber(t *testing.T) {
	shape := g.Object().Field("n", g.SchemaOf(Number())).Required().MustBuild()

	result := Validate(context.Background(), shape, map[string]any{"n": json.Number("3.5")})
	require.True(t, result.Valid())
	assert.Equal(t, 3.5, result.Value["n"])

	result = Validate(context.Background(), shape, map[string]any{"n": "3.5"})
	require.False(t, result.Valid())
	assert.Equal(t, "Expected number, received string", result.Violations[0].Message)
}

func TestValidateMalformedRuleDoesNotPanic(t *testing.T) {
	shape := g.Object().Field("s", g.SchemaOf(String(Rule{Tag: "notatag"}))).MustBuild()

	assert.NotPanics(t, func() {
		result := Validate(context.Background(), shape, map[string]any{"s": "x"})
		require.False(t, result.Valid())
		assert.Equal(t, CodeInvalidValue, result.Violations[0].Code)
		assert.Equal(t, "s", result.Violations[0].Path)
	})
}

func TestOneOfJSONSchema(t *testing.T) {
	schema, err := OneOf(Alt(Bool()), Alt(String())).JSONSchema()
	require.NoError(t, err)
	require.Len(t, schema.OneOf, 2)
	assert.Equal(t, "boolean", schema.OneOf[0].Type)
	assert.Equal(t, "string", schema.OneOf[1].Type)
}

type decodeTarget struct {
	HTML     string `json:"html"`
	Download bool   `json:"download"`
	Filename string `json:"filename,omitempty"`
	Options  *struct {
		Width   *float64 `json:"width"`
		Quality *float64 `json:"quality"`
		Style   any      `json:"style"`
	} `json:"options"`
	Strict any            `json:"strict"`
	Macros map[string]any `json:"macros"`
}

func TestValidateInto(t *testing.T) {
	var req decodeTarget
	result, err := ValidateInto(context.Background(), testShape,
		decodeJSON(t, `{"html":"<b>x</b>","options":{"width":640,"quality":0.5,"style":{"color":"red"}},"strict":true}`),
		&req)
	require.NoError(t, err)
	require.True(t, result.Valid())

	assert.Equal(t, "<b>x</b>", req.HTML)
	assert.False(t, req.Download)
	require.NotNil(t, req.Options)
	require.NotNil(t, req.Options.Width)
	assert.Equal(t, 640.0, *req.Options.Width)
	assert.Equal(t, 0.5, *req.Options.Quality)
	assert.Equal(t, map[string]any{"color": "red"}, req.Options.Style)
	assert.Equal(t, true, req.Strict)
}

func TestValidateIntoSkipsDecodeWhenInvalid(t *testing.T) {
	req := decodeTarget{HTML: "untouched"}
	result, err := ValidateInto(context.Background(), testShape, map[string]any{}, &req)

	require.NoError(t, err)
	assert.False(t, result.Valid())
	assert.Equal(t, "untouched", req.HTML)
}
