package dto

import (
	"reflect"
	"strings"

	"branch-ledger/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("account_number", validateAccountNumber)
		_ = v.RegisterValidation("customer_id", validateCustomerID)
		_ = v.RegisterValidation("branch_code", validateBranchCode)
	}
}

func validateAccountNumber(fl validator.FieldLevel) bool {
	return domain.ValidAccountNumber(fl.Field().String())
}

func validateCustomerID(fl validator.FieldLevel) bool {
	return domain.ValidCustomerID(fl.Field().String())
}

// validateBranchCode accepts real branch codes only; ALL is rejected.
func validateBranchCode(fl validator.FieldLevel) bool {
	return domain.ValidBranchCode(fl.Field().String())
}

// NormalizeStruct trims whitespace from every exported string field
// (including *string) of a struct pointer. Fields tagged normalize:"upper"
// are also upper-cased; fields tagged normalize:"-" are left untouched.
func NormalizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	normalizeFields(rv.Elem())
}

func normalizeFields(rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		mode := rt.Field(i).Tag.Get("normalize")
		if mode == "-" {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(normalize(f.String(), mode))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(normalize(elem.String(), mode))
			}
		}
	}
}

func normalize(s, mode string) string {
	s = strings.TrimSpace(s)
	if mode == "upper" {
		s = strings.ToUpper(s)
	}
	return s
}
