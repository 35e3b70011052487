package postgresadapter

import (
	"context"
	"strconv"
	"strings"
	"time"

	"backlot/contexts/finance-core/settlement-engine/ports"

	"gorm.io/gorm"
)

// SettingsProvider reads settlement runtime settings from the shared
// runtime_settings table on every call, so operators can retune the split
// percentages and vote price without a redeploy. The platform addresses come
// from deploy-time configuration and are only injected here.
type SettingsProvider struct {
	DB              *gorm.DB
	PlatformAddress string
	PlatformWallet  string
}

type settingModel struct {
	Key   string `gorm:"column:key;primaryKey"`
	Value string `gorm:"column:value"`
}

func (settingModel) TableName() string {
	return "runtime_settings"
}

func (p SettingsProvider) SettlementConfig(ctx context.Context) (ports.SettlementConfig, error) {
	var rows []settingModel
	if err := p.DB.WithContext(ctx).
		Where("key LIKE ?", "settlement.%").
		Find(&rows).Error; err != nil {
		return ports.SettlementConfig{}, err
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}

	cfg := ports.SettlementConfig{
		ProtocolVersion:   1,
		Scheme:            "exact",
		AllowedNetworks:   []string{"base", "base-sepolia"},
		PlatformAddress:   p.PlatformAddress,
		PlatformWallet:    p.PlatformWallet,
		CreatorPct:        69,
		PlatformPct:       30,
		AgentPct:          1,
		MaxValidityWindow: 5 * time.Minute,
		PayoutMaxRetries:  4,
		ClipVoteCents:     25,
	}
	cfg.ProtocolVersion = intSetting(values, "settlement.protocol_version", cfg.ProtocolVersion)
	if raw, ok := values["settlement.scheme"]; ok && raw != "" {
		cfg.Scheme = raw
	}
	if raw, ok := values["settlement.allowed_networks"]; ok {
		networks := make([]string, 0)
		for _, network := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(network); trimmed != "" {
				networks = append(networks, trimmed)
			}
		}
		if len(networks) > 0 {
			cfg.AllowedNetworks = networks
		}
	}
	cfg.CreatorPct = intSetting(values, "settlement.creator_pct", cfg.CreatorPct)
	cfg.PlatformPct = intSetting(values, "settlement.platform_pct", cfg.PlatformPct)
	cfg.AgentPct = intSetting(values, "settlement.agent_pct", cfg.AgentPct)
	cfg.MaxValidityWindow = durationSetting(values, "settlement.max_validity_window", cfg.MaxValidityWindow)
	cfg.PayoutMaxRetries = intSetting(values, "settlement.payout_max_retries", cfg.PayoutMaxRetries)
	if raw, ok := values["settlement.clip_vote_cents"]; ok {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			cfg.ClipVoteCents = parsed
		}
	}
	return cfg, nil
}

func durationSetting(values map[string]string, key string, fallback time.Duration) time.Duration {
	raw, ok := values[key]
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func intSetting(values map[string]string, key string, fallback int) int {
	raw, ok := values[key]
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
