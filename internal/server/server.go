package server

import (
	"context"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// New はmiddleware込みのechoインスタンスを作る
func New() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	return e
}

// Start はサーバーを起動する
func Start(e *echo.Echo, addr string) error {
	return e.Start(addr)
}

// Shutdown はgraceful shutdownを行う
func Shutdown(ctx context.Context, e *echo.Echo) error {
	return e.Shutdown(ctx)
}
