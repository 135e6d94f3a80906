package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	AutoMigrate            bool
	RedisURL               string
	NATSURL                string
	RealtimeChannel        string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	RosterDefaultLimit     int
	RosterMaxLimit         int
	CORSOrigins            string
	ExposeErrorDetails     bool
	ExportRatePerMinute    int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ELIMU")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("app.name", "Elimu Space API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "3000")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("realtime.channel", "elimu")
	v.SetDefault("cloudinary.folder", "elimu-space")
	v.SetDefault("roster.default_limit", 25)
	v.SetDefault("roster.max_limit", 100)
	v.SetDefault("cors.origins", "http://localhost:5173")
	v.SetDefault("rate_limit.export_per_minute", 10)

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 strings.ToLower(v.GetString("app.env")),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		AutoMigrate:            v.GetBool("database.auto_migrate"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		RealtimeChannel:        v.GetString("realtime.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		RosterDefaultLimit:     v.GetInt("roster.default_limit"),
		RosterMaxLimit:         v.GetInt("roster.max_limit"),
		CORSOrigins:            v.GetString("cors.origins"),
		ExportRatePerMinute:    v.GetInt("rate_limit.export_per_minute"),
	}

	if v.IsSet("errors.expose_details") {
		cfg.ExposeErrorDetails = v.GetBool("errors.expose_details")
	} else {
		cfg.ExposeErrorDetails = !cfg.IsProduction()
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.RosterMaxLimit <= 0 {
		cfg.RosterMaxLimit = 100
	}
	if cfg.RosterDefaultLimit <= 0 || cfg.RosterDefaultLimit > cfg.RosterMaxLimit {
		cfg.RosterDefaultLimit = 25
	}
	if cfg.ExportRatePerMinute <= 0 {
		cfg.ExportRatePerMinute = 10
	}

	return cfg, nil
}
