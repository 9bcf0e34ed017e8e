package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/ogurasousui/user-api/internal/core/user"
)

const maxBodyBytes = 1 << 20

// decodeJSON はリクエストボディを厳密にデコードします。
// 未知のフィールド・不正な JSON・型の不一致はすべて *user.ValidationError になります。
func decodeJSON(c echo.Context, dst any) error {
	dec := json.NewDecoder(io.LimitReader(c.Request().Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}
	if dec.More() {
		return fieldError("body", "must contain a single JSON object")
	}
	return nil
}

func bodyError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, io.EOF):
		return fieldError("body", "is required")
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return fieldError("body", "is not valid JSON")
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return fieldError(typeErr.Field, fmt.Sprintf("must be of type %s", typeErr.Type))
		}
		return fieldError("body", fmt.Sprintf("contains a value of the wrong type (expected %s)", typeErr.Type))
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		name := strings.TrimPrefix(err.Error(), "json: unknown field ")
		if unquoted, uerr := strconv.Unquote(name); uerr == nil {
			name = unquoted
		}
		return fieldError(name, "is not allowed")
	default:
		return fieldError("body", err.Error())
	}
}

func fieldError(field, message string) *user.ValidationError {
	return &user.ValidationError{Fields: []user.FieldError{{Field: field, Message: message}}}
}
