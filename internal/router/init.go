package router

import (
	"github.com/burenotti/health-backend/internal/application"
	"github.com/burenotti/health-backend/internal/container"
	"github.com/burenotti/health-backend/internal/infrastructure/postgres"
	handlers "github.com/burenotti/health-backend/internal/interface/http"
	"github.com/burenotti/health-backend/internal/router/modules"
)

// InitModules wires the application modules from the container singletons and
// registers them with the router registry. Called once during startup.
func InitModules(r *Registry) {
	factory := postgres.NewUnitOfWorkFactory(
		container.GetPGPool(),
		container.GetBus(),
		container.GetLogger(),
	)
	service := application.NewService(factory, container.GetJWT(), container.GetLogger())

	r.Add(modules.NewAuthModule(handlers.NewAuthHandler(service, container.GetLogger()), container.GetJWT()))
	r.Add(modules.NewUserModule(handlers.NewUserHandler(service, container.GetLogger()), container.GetJWT()))
}
