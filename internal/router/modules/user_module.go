package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/burenotti/health-backend/internal/interface/http"
	"github.com/burenotti/health-backend/internal/interface/middleware"
	"github.com/burenotti/health-backend/pkg/helpers"
)

type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	rg.POST("/users/:user_id", m.Handler.Create)
	rg.GET("/users/:user_id", m.Handler.GetByID)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT))
	{
		auth.GET("/users", m.Handler.Me)
	}
}
