package api

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/labstack/echo/v4"
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

func errMissingFields() error {
	return fmt.Errorf("%w: missing required fields", common.ErrValidation)
}

// HandleSignup handles POST /api/auth/signup.
func (h *Handler) HandleSignup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return mapServiceError(c, errMissingFields())
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return mapServiceError(c, errMissingFields())
	}

	res, err := h.users.Signup(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User created successfully",
		"user":    res.User.View(),
		"token":   res.Token,
	})
}

// HandleLogin handles POST /api/auth/login.
func (h *Handler) HandleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return mapServiceError(c, errMissingFields())
	}
	if req.Email == "" || req.Password == "" {
		return mapServiceError(c, errMissingFields())
	}

	res, err := h.users.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Login successful",
		"user":    res.User.View(),
		"token":   res.Token,
	})
}

// HandleLogout handles POST /api/auth/logout. Tokens are stateless, so the
// client discards its copy.
func (h *Handler) HandleLogout(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Logout successful",
		"note":    "Please remove the token from client storage",
	})
}

// HandleProfile handles GET /api/auth/me.
func (h *Handler) HandleProfile(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"user": h.users.Profile(currentUser(c))})
}

// HandleUpdateProfile handles PUT /api/auth/me.
func (h *Handler) HandleUpdateProfile(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return mapServiceError(c, fmt.Errorf("%w: invalid request body", common.ErrValidation))
	}
	if req.Username == nil && req.Password == nil {
		return mapServiceError(c, fmt.Errorf("%w: no data provided", common.ErrValidation))
	}

	user, err := h.users.UpdateProfile(c.Request().Context(), currentUser(c), req.Username, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Profile updated successfully",
		"user":    user.View(),
	})
}
