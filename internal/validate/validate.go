package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
)

// Reason classifies a single violation.
type Reason string

const (
	ReasonMissing     Reason = "missing"
	ReasonType        Reason = "type"
	ReasonBelowMin    Reason = "below_min"
	ReasonAboveMax    Reason = "above_max"
	ReasonTooShort    Reason = "below_min_length"
	ReasonTooLong     Reason = "above_max_length"
	ReasonNotAllowed  Reason = "not_allowed"
	ReasonPattern     Reason = "pattern"
	ReasonExtra       Reason = "extra_property"
	ReasonUnsatisfied Reason = "invalid"
)

// Violation describes one property that failed validation.
type Violation struct {
	Property string `json:"property"`
	Value    any    `json:"value,omitempty"`
	Reason   Reason `json:"reason"`
	Param    string `json:"param,omitempty"`
}

// Error carries every violation found in a record.
type Error struct {
	Violations []Violation
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		part := v.Property + ": " + string(v.Reason)
		if v.Param != "" {
			part += " (" + v.Param + ")"
		}
		parts = append(parts, part)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Violations extracts the violation list from err, or nil when err is not a validation error.
func Violations(err error) []Violation {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Violations
	}
	return nil
}

// Join appends extra violations to err. A nil err with no extras stays nil.
func Join(err error, extra ...Violation) error {
	if len(extra) == 0 {
		return err
	}
	if err == nil {
		return &Error{Violations: extra}
	}
	var verr *Error
	if errors.As(err, &verr) {
		return &Error{Violations: append(append([]Violation(nil), verr.Violations...), extra...)}
	}
	return err
}

// Named patterns usable as validate tags.
var patterns = map[string]*regexp.Regexp{
	"tableid":  regexp.MustCompile(`^[A-Z]{1,4}[0-9]+$`),
	"menucode": regexp.MustCompile(`^[A-Za-z]{2}[0-9]+$`),
	"phone":    regexp.MustCompile(`^[0-9]{10}$`),
	"ddmmyyyy": regexp.MustCompile(`^[0-9]{2}-[0-9]{2}-[0-9]{4}$`),
	"hhmmss":   regexp.MustCompile(`^[0-9]{2}:[0-9]{2}:[0-9]{2}$`),
}

// Validator checks records against their declared shape.
type Validator struct {
	v *validator.Validate
}

// New builds a validator that reports JSON property names and knows the engine patterns.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})
	for tag, re := range patterns {
		re := re
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		}); err != nil {
			panic(fmt.Errorf("register %s validation: %w", tag, err))
		}
	}
	return &Validator{v: v}
}

var shared = sync.OnceValue(New)

// Default returns a process-wide validator.
func Default() *Validator {
	return shared()
}

// Struct validates s and returns *Error listing every violation, or nil.
func (v *Validator) Struct(s any) error {
	if v == nil || v.v == nil {
		return errors.New("validate: validator not configured")
	}
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make([]Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, translate(fe))
	}
	return &Error{Violations: out}
}

// Decode strictly decodes a raw JSON record into dst and validates it. Unknown
// properties and JSON type mismatches are reported as violations.
func (v *Validator) Decode(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	return v.Struct(dst)
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &Error{Violations: []Violation{{
			Property: typeErr.Field,
			Value:    typeErr.Value,
			Reason:   ReasonType,
			Param:    typeErr.Type.String(),
		}}}
	}
	const unknownPrefix = "json: unknown field "
	if msg := err.Error(); strings.HasPrefix(msg, unknownPrefix) {
		return &Error{Violations: []Violation{{
			Property: strings.Trim(strings.TrimPrefix(msg, unknownPrefix), `"`),
			Reason:   ReasonExtra,
		}}}
	}
	return fmt.Errorf("decode record: %w", err)
}

func translate(fe validator.FieldError) Violation {
	out := Violation{
		Property: property(fe.Namespace()),
		Value:    fe.Value(),
		Param:    fe.Param(),
	}
	sized := false
	switch fe.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		sized = true
	}
	switch tag := fe.Tag(); tag {
	case "required", "required_if", "required_with":
		out.Reason = ReasonMissing
	case "min", "gte", "gt":
		if sized {
			out.Reason = ReasonTooShort
		} else {
			out.Reason = ReasonBelowMin
		}
	case "max", "lte", "lt":
		if sized {
			out.Reason = ReasonTooLong
		} else {
			out.Reason = ReasonAboveMax
		}
	case "oneof":
		out.Reason = ReasonNotAllowed
	default:
		if _, ok := patterns[tag]; ok {
			out.Reason = ReasonPattern
			out.Param = tag
		} else {
			out.Reason = ReasonUnsatisfied
			out.Param = tag
		}
	}
	return out
}

// property drops the root struct name from a validator namespace.
func property(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
