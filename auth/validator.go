package auth

import (
	stderrors "errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"planning-poker/errors"

	"github.com/go-playground/validator/v10"
)

const maxDisplayNameRunes = 64

var validate = newAccountValidator()

func newAccountValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("password", strongPassword)
	_ = v.RegisterValidation("displayname", displayName)
	return v
}

// RegisterRequest is what a new account must satisfy.
type RegisterRequest struct {
	Email    string `validate:"required,email,max=254"`
	Name     string `validate:"required,displayname"`
	Password string `validate:"required,min=12,max=72,password"`
}

// ValidateRegister reports any password failure as ErrInvalidPassword so
// clients can tell it apart from a malformed request.
func ValidateRegister(req RegisterRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if stderrors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.Field() == "Password" {
				return fmt.Errorf("%w: failed %q", errors.ErrInvalidPassword, fe.Tag())
			}
		}
	}
	return err
}

// strongPassword wants an upper case letter, a lower case letter, a digit
// and a symbol.
func strongPassword(fl validator.FieldLevel) bool {
	var upper, lower, digit, symbol bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsNumber(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

// displayName is what other participants see next to a vote.
func displayName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if utf8.RuneCountInString(name) > maxDisplayNameRunes {
		return false
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
