package app

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"lager_lending_tool/apperr"
	"lager_lending_tool/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const loggerKey = "logger"

func loggerOf(c *gin.Context) *logger.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*logger.Logger); ok && l != nil {
			return l
		}
	}
	return logger.Nop()
}

// Fail renders err as {"error": message} with the status of its kind.
// Internal causes are logged and never exposed.
func Fail(c *gin.Context, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.Internal(err, "unexpected error")
	}

	msg := typed.Message()
	if typed.Kind() == apperr.KindInternal {
		loggerOf(c).Error(c.Request.Context(), "request.failed", err)
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(typed.Kind().HTTPStatus(), H{"error": msg})
}

// Bind decodes and validates a JSON body into dst.
func Bind(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return bindError(err)
	}
	return nil
}

// BindOptional is Bind for endpoints whose body may be omitted entirely.
func BindOptional(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	return Bind(c, dst)
}

func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field()+" "+validationMessage(fe))
		}
		return apperr.Validation("invalid request: " + strings.Join(fields, "; "))
	}
	if errors.Is(err, io.EOF) {
		return apperr.Validation("request body required")
	}
	return apperr.Wrap(apperr.KindValidation, err, "invalid request body")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "isodate":
		return "must be a YYYY-MM-DD date"
	case "barcode":
		return "must be a barcode without spaces"
	}
	return "is invalid"
}
