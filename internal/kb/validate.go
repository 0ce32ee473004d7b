package kb

import (
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := parseHHMM(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks struct tags of a KB model (Entry, FaqItem, AllergenInfo, ProductAlias,
// Settings, Span).
func Validate(v interface{}) error {
	return validate.Struct(v)
}
