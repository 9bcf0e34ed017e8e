package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/ogurasousui/user-api/internal/core/user"
)

// UserHandler はユーザー API の HTTP 実装です。
type UserHandler struct {
	svc user.UseCase
}

// NewUserHandler は UserHandler を生成します。
func NewUserHandler(svc user.UseCase) *UserHandler {
	return &UserHandler{svc: svc}
}

// Register は /users 配下のルートを登録します。
func (h *UserHandler) Register(g *echo.Group) {
	g.POST("/users", h.Create)
	g.GET("/users", h.List)
	g.GET("/users/:id", h.Get).Name = "users.get"
	g.PUT("/users/:id", h.Update)
	g.PATCH("/users/:id", h.Update)
	g.DELETE("/users/:id", h.Delete)
}

// Create はユーザーを作成し 201 を返します。
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}

	created, err := h.svc.CreateUser(c.Request().Context(), req.toInput())
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, c.Echo().Reverse("users.get", created.ID))
	return c.JSON(http.StatusCreated, toUserResponse(created))
}

// Get は ID 指定でユーザーを返します。論理削除済みのユーザーも返却対象です。
func (h *UserHandler) Get(c echo.Context) error {
	found, err := h.svc.GetUser(c.Request().Context(), user.GetUserInput{ID: c.Param("id")})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(found))
}

// List はユーザー一覧を作成日時の降順で返します。
func (h *UserHandler) List(c echo.Context) error {
	in, err := parseListQuery(c)
	if err != nil {
		return err
	}

	users, err := h.svc.ListUsers(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponses(users))
}

// Update は指定されたフィールドのみを更新します。
func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}

	updated, err := h.svc.UpdateUser(c.Request().Context(), req.toInput(c.Param("id")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(updated))
}

// Delete はユーザーを論理削除し 204 を返します。
func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.svc.SoftDeleteUser(c.Request().Context(), user.SoftDeleteUserInput{ID: c.Param("id")}); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func parseListQuery(c echo.Context) (user.ListUsersInput, error) {
	in := user.ListUsersInput{Limit: user.DefaultListLimit}
	verr := &user.ValidationError{}

	if raw := c.QueryParam("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			verr.Fields = append(verr.Fields, user.FieldError{Field: "active", Message: "must be a boolean"})
		} else {
			in.Active = &active
		}
	}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			verr.Fields = append(verr.Fields, user.FieldError{Field: "limit", Message: "must be an integer"})
		} else {
			in.Limit = limit
		}
	}

	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			verr.Fields = append(verr.Fields, user.FieldError{Field: "offset", Message: "must be an integer"})
		} else {
			in.Offset = offset
		}
	}

	if len(verr.Fields) > 0 {
		return user.ListUsersInput{}, verr
	}
	return in, nil
}
