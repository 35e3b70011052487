package config

import (
	"os"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	ProviderBaseURL string
	ProviderAPIKey  string

	FacilitatorBaseURL string
	FacilitatorAPIKey  string
	PlatformAddress    string
	PlatformWallet     string

	AssetsBucket string
	AssetsRegion string
	CDNBaseURL   string

	WorkerPollInterval time.Duration

	EnableSchedulerTicks   bool
	EnableProductionPasses bool
	EnablePayoutProcessor  bool
	EnableOutboxRelays     bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "backlot"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	poll := 15 * time.Second
	if raw := strings.TrimSpace(os.Getenv("WORKER_POLL_INTERVAL")); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			poll = parsed
		}
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		ProviderBaseURL: os.Getenv("PROVIDER_BASE_URL"),
		ProviderAPIKey:  os.Getenv("PROVIDER_API_KEY"),

		FacilitatorBaseURL: os.Getenv("FACILITATOR_BASE_URL"),
		FacilitatorAPIKey:  os.Getenv("FACILITATOR_API_KEY"),
		PlatformAddress:    os.Getenv("PLATFORM_ADDRESS"),
		PlatformWallet:     os.Getenv("PLATFORM_WALLET"),

		AssetsBucket: os.Getenv("ASSETS_BUCKET"),
		AssetsRegion: os.Getenv("ASSETS_REGION"),
		CDNBaseURL:   os.Getenv("CDN_BASE_URL"),

		WorkerPollInterval: poll,

		EnableSchedulerTicks:   envBool("ENABLE_SCHEDULER_TICKS", true),
		EnableProductionPasses: envBool("ENABLE_PRODUCTION_PASSES", true),
		EnablePayoutProcessor:  envBool("ENABLE_PAYOUT_PROCESSOR", true),
		EnableOutboxRelays:     envBool("ENABLE_OUTBOX_RELAYS", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
