package handler

import (
	"net/http"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
	"github.com/Kccollections/kc-collections-sub000/internal/middleware"
	"github.com/Kccollections/kc-collections-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// usecaseのHTTPErrorをレスポンスへ変換する
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// AuthJWTが入れたuser_idを取り出す
func getUserIDFromContext(c echo.Context) (int64, bool) {
	raw := c.Get(middleware.CtxUserIDKey)
	id, ok := raw.(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

// AuthJWTが入れたroleを取り出す
func getRoleFromContext(c echo.Context) model.Role {
	raw := c.Get(middleware.CtxUserRoleKey)
	role, ok := raw.(string)
	if !ok {
		return model.RoleUser
	}
	return model.Role(role)
}
