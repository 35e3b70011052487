package productionpipeline

import (
	"log/slog"

	httpadapter "backlot/contexts/studio-content/production-pipeline/adapters/http"
	"backlot/contexts/studio-content/production-pipeline/adapters/memory"
	"backlot/contexts/studio-content/production-pipeline/application"
	"backlot/contexts/studio-content/production-pipeline/ports"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Repository  ports.Repository
	Video       ports.VideoGenerator
	Audio       ports.AudioGenerator
	Image       ports.ImageGenerator
	Uploader    ports.StorageUploader
	Config      ports.ConfigProvider
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:     deps.Repository,
		Video:    deps.Video,
		Audio:    deps.Audio,
		Image:    deps.Image,
		Uploader: deps.Uploader,
		Config:   deps.Config,
		Outbox:   deps.Outbox,
		Clock:    deps.Clock,
		IDGen:    deps.IDGenerator,
		Logger:   deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

// NewInMemoryModule wires the pipeline against the in-memory store. Providers
// and uploader stay nil unless supplied, which exercises the not-configured
// skip path by default.
func NewInMemoryModule(
	video ports.VideoGenerator,
	audio ports.AudioGenerator,
	image ports.ImageGenerator,
	uploader ports.StorageUploader,
	logger *slog.Logger,
) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		Video:       video,
		Audio:       audio,
		Image:       image,
		Uploader:    uploader,
		Config:      store,
		Outbox:      store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
