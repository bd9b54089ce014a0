package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thibou/auth-api/internal/core/domain"
	"github.com/thibou/auth-api/internal/core/ports"
)

// UserHandler serves account reads and profile updates.
type UserHandler struct {
	users ports.UserService
}

func NewUserHandler(users ports.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// List returns every account. Admin only.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userListResponse
// @Failure      403  {object}  errorResponse
// @Router       /user [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return err
	}

	views := make([]domain.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View(domain.ViewPrivileged))
	}
	return c.JSON(http.StatusOK, userListResponse{Message: "Users retrieved successfully", Users: views})
}

// Get returns one account. Admins receive the privileged view; other callers
// may read their own account, or any account when granted user:read.
//
// @Summary      Get user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  userResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /user/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	id := c.Param("id")

	isAdmin := claims.Role == domain.RoleAdmin
	if !isAdmin && claims.Subject != id && !domain.HasScope(claims.Scopes, "user:read") {
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	}

	user, err := h.users.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}

	intent := domain.ViewPublic
	if isAdmin {
		intent = domain.ViewPrivileged
	}
	return c.JSON(http.StatusOK, userResponse{Message: "User retrieved successfully", User: user.View(intent)})
}

// Update changes the caller's own profile.
//
// @Summary      Update profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "User ID"
// @Param        body  body      updateProfileRequest  true  "Profile changes"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /user/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	claims, err := ctxUserClaims(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	if claims.Subject != id {
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	}

	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.users.UpdateProfile(c.Request().Context(), id, ports.ProfileUpdate{
		Name:        req.Name,
		Email:       req.Email,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, userResponse{Message: "Profile updated successfully", User: user.View(domain.ViewPrivileged)})
}

// Delete removes an account. Admin only.
//
// @Summary      Delete user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  messageResponse
// @Failure      404  {object}  errorResponse
// @Router       /user/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.users.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "User deleted"})
}
