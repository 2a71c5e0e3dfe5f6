package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// legacyEnv binds the plain environment names the server has always read.
var legacyEnv = map[string]string{
	"server.port":          "PORT",
	"server.admin_secret":  "ADMIN_SECRET",
	"server.cors_origins":  "CORS_ORIGINS",
	"database.url":         "DATABASE_URL",
	"redis.address":        "REDIS_ADDR",
	"redis.password":       "REDIS_PASSWORD",
	"auth.jwt_secret":      "JWT_SECRET",
	"deadlines.store_path": "DEADLINES_FILE",
}

// Load reads .env (if any), then the YAML config file, then environment
// overrides. An empty path searches ./configs and the working directory.
func Load(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("GRANTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "GRANTS_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Server.CORSOrigins = splitOrigins(cfg.Server.CORSOrigins)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.cors_origins", []string{"http://localhost:4200"})
	v.SetDefault("database.run_migrations", true)
	v.SetDefault("redis.cache_ttl", 10*time.Minute)
	v.SetDefault("composer.max_iterations", 64)
	v.SetDefault("deadlines.store_path", filepath.Join("data", "deadlines.json"))
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// CORS_ORIGINS arrives as one comma-separated string.
func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

func validate(cfg *Config) error {
	if cfg.Composer.MaxIterations <= 0 {
		return fmt.Errorf("composer.max_iterations must be positive, got %d", cfg.Composer.MaxIterations)
	}
	if strings.TrimSpace(cfg.Deadlines.StorePath) == "" {
		return errors.New("deadlines.store_path is required")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %s", cfg.Auth.TokenTTL)
	}
	return nil
}

func loadEnvFile() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return
			}
		}
	}
}
