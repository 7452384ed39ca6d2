package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator はEcho用のカスタムバリデーター
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator は新しいバリデーターを作成する
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate はリクエストのバリデーションを実行する
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return echo.NewHTTPError(http.StatusBadRequest, strings.Join(msgs, ", "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s は必須です", fe.Field())
	case "min":
		return fmt.Sprintf("%s は %s 以上である必要があります", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s は %s 以下である必要があります", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s は %s より大きい必要があります", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s は %s のいずれかである必要があります", fe.Field(), fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s は %s と一致する必要があります", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s が不正です（%s）", fe.Field(), fe.Tag())
}
