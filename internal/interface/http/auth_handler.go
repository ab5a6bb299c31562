package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/burenotti/health-backend/internal/application"
	"github.com/burenotti/health-backend/pkg/response"
	"github.com/burenotti/health-backend/pkg/validation"
)

// AuthHandler exposes the token endpoints. It only parses, delegates to the
// application service and maps errors to statuses.
type AuthHandler struct {
	Service *application.Service
	Logger  *logrus.Logger
}

func NewAuthHandler(service *application.Service, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Service: service, Logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid request", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}

	pair, err := h.Service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, application.ErrInvalidCredentials) {
			resp := response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
			c.JSON(resp.Status, resp)
			return
		}
		h.Logger.WithError(err).Error("login failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
		c.JSON(resp.Status, resp)
		return
	}

	resp := response.Success(c, http.StatusOK, pair, "logged in")
	c.JSON(resp.Status, resp)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid request", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}

	pair, err := h.Service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, application.ErrAuthorizationExpired) {
			resp := response.Error[any](c, http.StatusUnauthorized, "authorization expired", nil)
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(resp.Status, resp)
			return
		}
		if errors.Is(err, application.ErrInvalidCredentials) {
			resp := response.Error[any](c, http.StatusUnauthorized, "invalid refresh token", nil)
			c.JSON(resp.Status, resp)
			return
		}
		h.Logger.WithError(err).Error("refresh failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
		c.JSON(resp.Status, resp)
		return
	}

	resp := response.Success(c, http.StatusOK, pair, "token refreshed")
	c.JSON(resp.Status, resp)
}

type logoutRequest struct {
	AuthorizationID string `json:"authorization_id" binding:"required,uuid"`
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req logoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid request", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	authorizationID, err := uuid.Parse(req.AuthorizationID)
	if err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid authorization id", nil)
		c.JSON(resp.Status, resp)
		return
	}

	if err := h.Service.Logout(c.Request.Context(), authorizationID); err != nil {
		if errors.Is(err, application.ErrUserNotFound) {
			resp := response.Error[any](c, http.StatusNotFound, "authorization not found", nil)
			c.JSON(resp.Status, resp)
			return
		}
		h.Logger.WithError(err).Error("logout failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
		c.JSON(resp.Status, resp)
		return
	}

	c.Status(http.StatusNoContent)
}
