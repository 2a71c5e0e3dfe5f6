package config

import "time"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Composer  ComposerConfig  `mapstructure:"composer"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Deadlines DeadlinesConfig `mapstructure:"deadlines"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	AdminSecret string   `mapstructure:"admin_secret"`
}

// DatabaseConfig selects Postgres as the opportunity source when URL is set.
type DatabaseConfig struct {
	URL           string `mapstructure:"url"`
	RunMigrations bool   `mapstructure:"run_migrations"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type CatalogConfig struct {
	// Path to a YAML catalog; empty uses the embedded mock catalog.
	Path string `mapstructure:"path"`
}

type ComposerConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
}

type RulesConfig struct {
	Path string `mapstructure:"path"`
}

type DeadlinesConfig struct {
	StorePath string `mapstructure:"store_path"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	// Clients maps client id to a bcrypt hash of its secret.
	Clients map[string]string `mapstructure:"clients"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
