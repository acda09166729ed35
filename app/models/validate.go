package models

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// validate is shared by the models; it caches struct metadata and is safe
// for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	rules := map[string]*regexp.Regexp{
		"ifsc":      ifscPattern,
		"accountno": accountNumberPattern,
		"upi":       upiPattern,
		"mobile":    phonePattern,
	}
	for tag, re := range rules {
		if err := v.RegisterValidation(tag, matchField(re)); err != nil {
			panic(err)
		}
	}
	return v
}

func matchField(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}
