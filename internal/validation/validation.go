// Package validation wires custom rules into gin's request binding.
package validation

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	validatorv10 "github.com/go-playground/validator/v10"
)

// supportedCurrencies is the enumerated currency set accepted on
// payment requests.
var supportedCurrencies = map[string]bool{
	"NGN": true,
	"USD": true,
	"GHS": true,
	"ZAR": true,
	"KES": true,
	"XOF": true,
}

// Register installs the custom validation rules on gin's binding
// engine. Call once at startup before serving requests.
func Register() error {
	v, ok := binding.Validator.Engine().(*validatorv10.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("currency", validCurrency)
}

func validCurrency(fl validatorv10.FieldLevel) bool {
	return supportedCurrencies[strings.ToUpper(fl.Field().String())]
}

// SupportedCurrency reports whether code is an accepted currency.
func SupportedCurrency(code string) bool {
	return supportedCurrencies[strings.ToUpper(code)]
}
