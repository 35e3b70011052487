package settlementengine

import (
	"log/slog"

	httpadapter "backlot/contexts/finance-core/settlement-engine/adapters/http"
	"backlot/contexts/finance-core/settlement-engine/adapters/memory"
	"backlot/contexts/finance-core/settlement-engine/application"
	"backlot/contexts/finance-core/settlement-engine/ports"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Repository  ports.Repository
	Facilitator ports.Facilitator
	Config      ports.ConfigProvider
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:        deps.Repository,
		Facilitator: deps.Facilitator,
		Config:      deps.Config,
		Outbox:      deps.Outbox,
		Clock:       deps.Clock,
		IDGen:       deps.IDGenerator,
		Logger:      deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(facilitator ports.Facilitator, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		Facilitator: facilitator,
		Config:      store,
		Outbox:      store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
