package config

import "strings"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"harvester"`
	Password string `env:"PASSWORD"                envDefault:"harvester"`
	Name     string `env:"NAME"                    envDefault:"harvester"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// MaxOpenConns caps the pool. The orchestrator holds at most one connection at a time,
	// the rest serve the control surface.
	MaxOpenConns int `env:"MAX_OPEN_CONNS" envDefault:"10"`
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// Sanitize applies guardrails to database configuration values.
func (c *DBConfig) Sanitize() {
	c.Host = strings.TrimSpace(c.Host)
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = 5432
	}
	if c.SSLMode = strings.TrimSpace(c.SSLMode); c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxOpenConns < 2 {
		c.MaxOpenConns = 2
	}
}

// RedisConfig contains Redis configuration. Redis only mirrors extraction progress,
// so it is optional.
type RedisConfig struct {
	Enabled            bool     `env:"ENABLED"              envDefault:"false"`
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
	// ProgressKey is the key holding the mirrored extraction progress snapshot.
	ProgressKey string `env:"PROGRESS_KEY" envDefault:"harvester:progress:current"`
}

// Sanitize applies guardrails to Redis configuration values.
func (c *RedisConfig) Sanitize() {
	c.URI = strings.TrimSpace(c.URI)
	if c.ProgressKey = strings.TrimSpace(c.ProgressKey); c.ProgressKey == "" {
		c.ProgressKey = "harvester:progress:current"
	}
}
