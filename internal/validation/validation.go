// Package validation contains the logic for validating
// request data.
//
// Request shapes are goskema object schemas built with its DSL. This package adds
// the leaf schemas the DSL leaves out (typed primitives with readable type errors,
// go-playground/validator rules, untagged unions) and turns goskema issues into
// errs.FieldError values. A valid payload can then be decoded into a typed request
// struct with Decode.
package validation
