package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	Addr          string
	DiscordToken  string
	GuildID       string
	CommandPrefix string

	CeloRPC          string
	DonationContract string
	RegistryContract string
	HealthIDContract string

	AdminAPIKey   string
	WebhookSecret string

	GuardianRoleName  string
	CoreTeamRoleName  string
	AnnounceChannelID string
	DonationChannelID string

	// Optional backends. Empty means the in-memory fallback.
	DatabaseURL   string
	MigrationsDir string
	RedisURL      string
}

// Load reads configuration from the environment. Every key in requiredKeys
// must be present; the bot refuses to start half-configured.
func Load() (Config, error) {
	cfg := Config{
		Addr:          getenv("API_ADDR", ":8080"),
		DiscordToken:  os.Getenv("DISCORD_TOKEN"),
		GuildID:       os.Getenv("GUILD_ID"),
		CommandPrefix: getenv("COMMAND_PREFIX", "!"),

		CeloRPC:          os.Getenv("CELO_RPC"),
		DonationContract: os.Getenv("DONATION_CONTRACT"),
		RegistryContract: os.Getenv("REGISTRY_CONTRACT"),
		HealthIDContract: os.Getenv("HEALTHID_CONTRACT"),

		AdminAPIKey:   os.Getenv("ADMIN_API_KEY"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		GuardianRoleName:  getenv("GUARDIAN_ROLE_NAME", "Guardian"),
		CoreTeamRoleName:  getenv("CORE_TEAM_ROLE_NAME", "Core Team"),
		AnnounceChannelID: os.Getenv("ANNOUNCE_CHANNEL_ID"),
		DonationChannelID: os.Getenv("DONATIONS_CHANNEL_ID"),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MigrationsDir: getenv("MIGRATIONS_DIR", "./db/migrations"),
		RedisURL:      os.Getenv("REDIS_URL"),
	}

	if missing := cfg.missingRequired(); len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

var requiredKeys = []string{
	"DISCORD_TOKEN",
	"CELO_RPC",
	"DONATION_CONTRACT",
	"REGISTRY_CONTRACT",
	"HEALTHID_CONTRACT",
	"ADMIN_API_KEY",
	"WEBHOOK_SECRET",
	"GUILD_ID",
}

func (c Config) missingRequired() []string {
	values := map[string]string{
		"DISCORD_TOKEN":     c.DiscordToken,
		"CELO_RPC":          c.CeloRPC,
		"DONATION_CONTRACT": c.DonationContract,
		"REGISTRY_CONTRACT": c.RegistryContract,
		"HEALTHID_CONTRACT": c.HealthIDContract,
		"ADMIN_API_KEY":     c.AdminAPIKey,
		"WEBHOOK_SECRET":    c.WebhookSecret,
		"GUILD_ID":          c.GuildID,
	}
	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
