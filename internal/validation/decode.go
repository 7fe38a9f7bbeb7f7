package validation

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Decode copies a validated value onto out, a pointer to a request struct.
//
// Field names come from `json` tags so one struct documents both the wire format
// and the typed payload. Numbers arrive as float64 and are converted to the
// struct's numeric types.
func Decode(value map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		ZeroFields:       true,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}

	if err := decoder.Decode(value); err != nil {
		return fmt.Errorf("failed to decode validated payload: %w", err)
	}
	return nil
}

// ValidateInto validates input against shape and, when valid, decodes it into out.
// It returns the Result so callers can report violations; the error is only
// non-nil when a valid payload does not fit out, which is a programming error.
func ValidateInto(ctx context.Context, shape Shape, input any, out any) (Result, error) {
	result := Validate(ctx, shape, input)
	if !result.Valid() {
		return result, nil
	}
	return result, Decode(result.Value, out)
}
