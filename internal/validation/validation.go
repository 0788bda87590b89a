// Package validation turns raw request bodies into typed, validated inputs.
//
// Failures are reported as *Error carrying one FieldError per offending JSON
// field; the API boundary renders them as HTTP 422.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a caller-actionable validation failure.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, msg string) *Error {
	return &Error{Fields: []FieldError{{Field: field, Message: msg}}}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("dotted_domain", func(fl validator.FieldLevel) bool {
		return hasDottedDomain(fl.Field().String())
	})
	return v
}

func hasDottedDomain(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1 && !strings.Contains(domain, "..")
}

// IsEmail reports whether s is a syntactically valid address with a dotted
// domain.
func IsEmail(s string) bool {
	return validate.Var(s, "required,email,dotted_domain") == nil
}

// NormalizeEmail trims surrounding space and lower-cases the domain part.
// The local part is left as typed.
func NormalizeEmail(s string) string {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return s
	}
	return s[:at] + "@" + strings.ToLower(s[at+1:])
}

// check runs struct validation and converts failures to *Error.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "email", "dotted_domain":
		return "value is not a valid email address"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// decode reads one JSON object from r. Type mismatches are reported against
// the offending field; anything else is reported against the body.
func decode(r io.Reader, dst any) error {
	if r == nil {
		return fieldError("body", "field required")
	}
	err := json.NewDecoder(r).Decode(dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return fieldError("body", "field required")
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fieldError(typeErr.Field, "invalid type: expected "+typeErr.Type.String())
	}
	// A string that is not a number, decoded into json.Number, fails without
	// naming the field.
	if strings.Contains(err.Error(), "invalid number literal") {
		if name := numberField(dst); name != "" {
			return fieldError(name, "value is not a valid number")
		}
	}
	return fieldError("body", "invalid JSON")
}

var numberType = reflect.TypeOf(json.Number(""))

// numberField returns the JSON name of the json.Number field of the struct
// dst points to, or "" when it has none.
func numberField(dst any) string {
	t := reflect.TypeOf(dst)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return ""
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft == numberType {
			return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		}
	}
	return ""
}
