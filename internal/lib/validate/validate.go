// Package validate builds the request validator shared by HTTP handlers and
// registers the portal specific tags:
//
//	npk       employee code, one capital letter, five digits, dash, two digits
//	password  8-16 characters with a lowercase, an uppercase, a digit and a symbol
package validate

import (
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator"
)

const (
	// TagNPK validates an employee identity code.
	TagNPK = "npk"
	// TagPassword validates the password policy.
	TagPassword = "password"

	minPasswordLen = 8
	maxPasswordLen = 16
)

var (
	npkRe    = regexp.MustCompile(`^[A-Z][0-9]{5}-[0-9]{2}$`)
	lowerRe  = regexp.MustCompile(`[a-z]`)
	upperRe  = regexp.MustCompile(`[A-Z]`)
	digitRe  = regexp.MustCompile(`[0-9]`)
	symbolRe = regexp.MustCompile(`[\W_]`)
)

// New returns a validator with the npk and password tags registered.
// Violations report the JSON name of the field.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	// registration only fails on an empty tag or nil func
	_ = v.RegisterValidation(TagNPK, func(fl validator.FieldLevel) bool {
		return NPK(fl.Field().String())
	})
	_ = v.RegisterValidation(TagPassword, func(fl validator.FieldLevel) bool {
		return PasswordViolation(fl.Field().String()) == ""
	})
	return v
}

// NPK reports whether s is a well-formed employee identity code.
func NPK(s string) bool {
	return npkRe.MatchString(s)
}

// PasswordViolation returns a human readable description of the first
// password rule s breaks, or an empty string when s satisfies the policy.
func PasswordViolation(s string) string {
	if n := utf8.RuneCountInString(s); n < minPasswordLen || n > maxPasswordLen {
		return "password must be 8-16 characters long"
	}
	if !lowerRe.MatchString(s) {
		return "password must contain a lowercase letter"
	}
	if !upperRe.MatchString(s) {
		return "password must contain an uppercase letter"
	}
	if !digitRe.MatchString(s) {
		return "password must contain a digit"
	}
	if !symbolRe.MatchString(s) {
		return "password must contain a symbol"
	}
	return ""
}
