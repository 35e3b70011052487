package periodscheduler

import (
	"log/slog"

	httpadapter "backlot/contexts/studio-content/period-scheduler/adapters/http"
	"backlot/contexts/studio-content/period-scheduler/adapters/memory"
	"backlot/contexts/studio-content/period-scheduler/application"
	"backlot/contexts/studio-content/period-scheduler/ports"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Periods     ports.PeriodRepository
	Submissions ports.SubmissionRepository
	Production  ports.ProductionRunner
	Config      ports.ConfigProvider
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Periods:     deps.Periods,
		Submissions: deps.Submissions,
		Production:  deps.Production,
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

func NewInMemoryModule(production ports.ProductionRunner, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Periods:     store,
		Submissions: store,
		Production:  production,
		Config:      store,
		Outbox:      store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
