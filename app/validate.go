package app

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"lager_lending_tool/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const maxBarcodeLength = 120

var registerOnce sync.Once

// RegisterValidators installs the custom tags on gin's validator engine.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("barcode", validBarcode)
		_ = v.RegisterValidation("isodate", validISODate)
	})
}

func validBarcode(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	if len(s) > maxBarcodeLength {
		return false
	}
	return strings.IndexFunc(s, unicode.IsSpace) < 0
}

func validISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := models.ParseDate(s)
	return err == nil
}
