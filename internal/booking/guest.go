package booking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// GuestInfo is validated for presence only, never for format.
type GuestInfo struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
	Address   string `json:"address,omitempty"`
	ZipCode   string `json:"zipCode,omitempty"`
}

var guestFieldMessages = map[string]string{
	"firstName": "Please enter your first name.",
	"lastName":  "Please enter your last name.",
	"email":     "Please enter your email address.",
	"phone":     "Please enter your phone number.",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0] //nolint:gomnd
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

func (g GuestInfo) Normalize() GuestInfo {
	return GuestInfo{
		FirstName: strings.TrimSpace(g.FirstName),
		LastName:  strings.TrimSpace(g.LastName),
		Email:     strings.TrimSpace(g.Email),
		Phone:     strings.TrimSpace(g.Phone),
		Address:   strings.TrimSpace(g.Address),
		ZipCode:   strings.TrimSpace(g.ZipCode),
	}
}

// FullName joins first and last name the way the payment prefill expects it.
func (g GuestInfo) FullName() string {
	return strings.TrimSpace(g.FirstName + " " + g.LastName)
}

// Validate returns an *InputError listing every empty required field in form order.
func (g GuestInfo) Validate() error {
	err := validate.Struct(g.Normalize())
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate guest info: %w", err)
	}

	inputErr := NewInputError()

	for _, fe := range fieldErrs {
		msg, ok := guestFieldMessages[fe.Field()]
		if !ok {
			msg = fmt.Sprintf("provide %s", fe.Field())
		}

		inputErr.AddError(fe.Field(), msg)
	}

	return inputErr
}
