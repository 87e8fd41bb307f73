package render

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Non negative decimal with at most two fraction digits: "100", "0.5", "12.30"
var moneyRe = regexp.MustCompile(`^\d{1,18}(\.\d{1,2})?$`)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("money", validateMoney)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

func validateMoney(fl validator.FieldLevel) bool {
	return moneyRe.MatchString(fl.Field().String())
}
