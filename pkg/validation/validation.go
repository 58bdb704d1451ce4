package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// msisdnPattern accepts Ugandan mobile numbers: 07XXXXXXXX, 2567XXXXXXXX or +2567XXXXXXXX.
var msisdnPattern = regexp.MustCompile(`^(?:\+?256|0)7\d{8}$`)

// IsMSISDN reports whether s is a valid mobile money number.
func IsMSISDN(s string) bool {
	return msisdnPattern.MatchString(s)
}

// New returns a validator with the custom tags used by request DTOs:
//
//	msisdn        mobile money phone number
//	decimal_gt    decimal string strictly greater than the param
//	decimal_gte   decimal string greater than or equal to the param
func New() *validator.Validate {
	v := validator.New()
	mustRegister(v, "msisdn", func(fl validator.FieldLevel) bool {
		return IsMSISDN(fl.Field().String())
	})
	mustRegister(v, "decimal_gt", compareDecimal(func(c int) bool { return c > 0 }))
	mustRegister(v, "decimal_gte", compareDecimal(func(c int) bool { return c >= 0 }))
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("validation: register " + tag + ": " + err.Error())
	}
}

func compareDecimal(ok func(cmp int) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return ok(value.Cmp(bound))
	}
}
