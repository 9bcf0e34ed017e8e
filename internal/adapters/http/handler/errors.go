package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ogurasousui/user-api/internal/core/user"
	"github.com/rs/zerolog"
)

// NewErrorHandler はドメインエラーを HTTP ステータスと JSON 本文へ変換する echo.HTTPErrorHandler を返します。
// 想定外のエラーは内容を返さずにログへ記録します。
func NewErrorHandler(fallback zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err)
		if code == http.StatusInternalServerError {
			log := zerolog.Ctx(c.Request().Context())
			if log.GetLevel() == zerolog.Disabled {
				log = &fallback
			}
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error) (int, errorResponse) {
	var (
		validationErr *user.ValidationError
		conflictErr   *user.ConflictError
		httpErr       *echo.HTTPError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, errorResponse{
			Error:   user.ErrValidation.Error(),
			Details: validationErr.Fields,
		}
	case errors.As(err, &conflictErr):
		return http.StatusConflict, errorResponse{Error: string(conflictErr.Reason)}
	case errors.Is(err, user.ErrDuplicateUser):
		return http.StatusConflict, errorResponse{Error: user.ErrDuplicateUser.Error()}
	case errors.Is(err, user.ErrUserNotFound):
		return http.StatusNotFound, errorResponse{Error: user.ErrUserNotFound.Error()}
	case errors.As(err, &httpErr):
		msg := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok && m != "" {
			msg = m
		} else if httpErr.Message != nil {
			msg = fmt.Sprintf("%v", httpErr.Message)
		}
		if httpErr.Code >= http.StatusInternalServerError {
			msg = "internal server error"
		}
		return httpErr.Code, errorResponse{Error: msg}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
	}
}
