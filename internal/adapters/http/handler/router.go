package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/ogurasousui/user-api/docs"
	"github.com/ogurasousui/user-api/internal/core/user"
	"github.com/ogurasousui/user-api/internal/platform/metrics"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// RouterDeps はルーター構築に必要な依存関係です。
type RouterDeps struct {
	Users   user.UseCase
	Health  *HealthHandler
	Metrics *metrics.HTTPMetrics
	// Exposition は /metrics で公開するハンドラーです。nil の場合は登録しません。
	Exposition http.Handler
	Logger     zerolog.Logger
}

// NewRouter はすべてのルートを登録した echo.Echo を返します。
func NewRouter(deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewErrorHandler(deps.Logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(contextLogger(deps.Logger))
	e.Use(requestLogger())
	if deps.Metrics != nil {
		e.Use(deps.Metrics.Middleware())
	}

	api := e.Group("/api/v1")

	health := deps.Health
	if health == nil {
		health = NewHealthHandler(nil, 0)
	}
	api.GET("/health/live", health.Live)
	api.GET("/health/ready", health.Ready)

	NewUserHandler(deps.Users).Register(api)

	api.GET("/openapi.json", openAPIDocument)
	api.GET("/docs", func(c echo.Context) error {
		return c.Redirect(http.StatusMovedPermanently, c.Request().URL.Path+"/index.html")
	})
	api.GET("/docs/*", echoSwagger.EchoWrapHandler(echoSwagger.URL("/api/v1/openapi.json")))

	if deps.Exposition != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Exposition))
	}

	return e
}

func openAPIDocument(c echo.Context) error {
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(docs.SwaggerInfo.ReadDoc()))
}
