package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/burenotti/health-backend/internal/application"
	"github.com/burenotti/health-backend/internal/domain/entity"
	"github.com/burenotti/health-backend/internal/interface/middleware"
	"github.com/burenotti/health-backend/pkg/response"
	"github.com/burenotti/health-backend/pkg/validation"
)

type UserHandler struct {
	Service *application.Service
	Logger  *logrus.Logger
}

func NewUserHandler(service *application.Service, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Service: service, Logger: logger}
}

type createUserRequest struct {
	Kind      string `json:"kind" binding:"required,oneof=coach trainee"`
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Password  string `json:"password" binding:"required,min=8"`
}

type userResponse struct {
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `json:"is_active"`
}

func toUserResponse(u *entity.User) userResponse {
	return userResponse{
		UserID:    u.ID.String(),
		Kind:      string(u.Kind),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
	}
}

// Create registers a user under the caller-supplied id.
func (h *UserHandler) Create(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid user id", nil)
		c.JSON(resp.Status, resp)
		return
	}

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid request", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}

	user, err := h.Service.Register(c.Request.Context(), application.RegisterInput{
		ID:        userID,
		Kind:      entity.UserKind(req.Kind),
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		if errors.Is(err, application.ErrUserAlreadyExists) {
			resp := response.Error[any](c, http.StatusConflict, "user already exists", nil)
			c.JSON(resp.Status, resp)
			return
		}
		h.Logger.WithError(err).Error("create user failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
		c.JSON(resp.Status, resp)
		return
	}

	resp := response.Success(c, http.StatusCreated, toUserResponse(user), "user created")
	c.JSON(resp.Status, resp)
}

// GetByID returns a user profile by id.
func (h *UserHandler) GetByID(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid user id", nil)
		c.JSON(resp.Status, resp)
		return
	}

	user, err := h.Service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, application.ErrUserNotFound) {
			resp := response.Error[any](c, http.StatusNotFound, "user not found", nil)
			c.JSON(resp.Status, resp)
			return
		}
		h.Logger.WithError(err).Error("get user failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
		c.JSON(resp.Status, resp)
		return
	}

	resp := response.Success(c, http.StatusOK, toUserResponse(user), "")
	c.JSON(resp.Status, resp)
}

// Me returns the profile of the authenticated caller.
func (h *UserHandler) Me(c *gin.Context) {
	raw := c.GetString(middleware.CtxUserIDKey)
	userID, err := uuid.Parse(raw)
	if err != nil {
		resp := response.Error[any](c, http.StatusUnauthorized, "invalid access token", nil)
		c.JSON(resp.Status, resp)
		return
	}

	user, err := h.Service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, application.ErrUserNotFound) {
			resp := response.Error[any](c, http.StatusNotFound, "user not found", nil)
			c.JSON(resp.Status, resp)
			return
		}
		h.Logger.WithError(err).Error("get current user failed")
		resp := response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
		c.JSON(resp.Status, resp)
		return
	}

	resp := response.Success(c, http.StatusOK, toUserResponse(user), "")
	c.JSON(resp.Status, resp)
}
