package config

import (
	"strings"
	"time"
)

const (
	minErrorLogMaxChars = 1024
	maxAttemptsCeiling  = 10
	minScheduleInterval = time.Minute
	minHeartbeat        = time.Second
)

// HarvestConfig contains job orchestrator configuration.
type HarvestConfig struct {
	// MaxAttempts is the number of tries per (company, portal) pair.
	MaxAttempts int `env:"HARVEST_MAX_ATTEMPTS" envDefault:"3"`

	// Backoff lists the waits between attempts. The last value repeats when
	// MaxAttempts exceeds len(Backoff)+1.
	Backoff []time.Duration `env:"HARVEST_BACKOFF" envDefault:"2s,5s" envSeparator:","`

	// ErrorLogMaxChars bounds the job error log. Older entries are dropped first.
	ErrorLogMaxChars int `env:"HARVEST_ERROR_LOG_MAX_CHARS" envDefault:"10000"`

	// PortalsFile is the JSON file with portal definitions. Empty means no portals.
	PortalsFile string `env:"HARVEST_PORTALS_FILE" envDefault:"portals.json"`

	// PortalOrder overrides the file order of portals. Portals not listed keep file order after the listed ones.
	PortalOrder []string `env:"HARVEST_PORTAL_ORDER" envSeparator:","`

	// ProgressTTL is the expiry of the mirrored progress snapshot in Redis.
	ProgressTTL time.Duration `env:"HARVEST_PROGRESS_TTL" envDefault:"1h"`

	// DefaultListLimit and MaxListLimit bound the recent jobs query.
	DefaultListLimit int `env:"HARVEST_DEFAULT_LIST_LIMIT" envDefault:"20"`
	MaxListLimit     int `env:"HARVEST_MAX_LIST_LIMIT"     envDefault:"100"`

	// ScheduleEnabled runs the in-process trigger that starts a "week" job every ScheduleInterval.
	// Leave disabled when an external cron calls the control surface instead.
	ScheduleEnabled  bool          `env:"HARVEST_SCHEDULE_ENABLED"  envDefault:"false"`
	ScheduleInterval time.Duration `env:"HARVEST_SCHEDULE_INTERVAL" envDefault:"168h"`

	// HeartbeatInterval is how often a running job touches its row. Startup recovery only
	// fails pending/running jobs whose row has been quiet for longer than OrphanAfter, so a
	// job owned by another live process is left alone.
	HeartbeatInterval time.Duration `env:"HARVEST_HEARTBEAT_INTERVAL" envDefault:"30s"`
	OrphanAfter       time.Duration `env:"HARVEST_ORPHAN_AFTER"       envDefault:"3m"`
}

// Sanitize applies guardrails to harvest configuration values.
func (c *HarvestConfig) Sanitize() {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.MaxAttempts > maxAttemptsCeiling {
		c.MaxAttempts = maxAttemptsCeiling
	}

	backoff := make([]time.Duration, 0, len(c.Backoff))
	for _, d := range c.Backoff {
		if d < 0 {
			d = 0
		}
		backoff = append(backoff, d)
	}
	c.Backoff = backoff

	if c.ErrorLogMaxChars < minErrorLogMaxChars {
		c.ErrorLogMaxChars = minErrorLogMaxChars
	}

	c.PortalsFile = strings.TrimSpace(c.PortalsFile)

	order := make([]string, 0, len(c.PortalOrder))
	for _, p := range c.PortalOrder {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			order = append(order, p)
		}
	}
	c.PortalOrder = order

	if c.ProgressTTL <= 0 {
		c.ProgressTTL = time.Hour
	}
	if c.MaxListLimit < 1 {
		c.MaxListLimit = 100
	}
	if c.DefaultListLimit < 1 {
		c.DefaultListLimit = 20
	}
	if c.DefaultListLimit > c.MaxListLimit {
		c.DefaultListLimit = c.MaxListLimit
	}
	if c.ScheduleInterval < minScheduleInterval {
		c.ScheduleInterval = minScheduleInterval
	}
	if c.HeartbeatInterval < minHeartbeat {
		c.HeartbeatInterval = minHeartbeat
	}
	// Leave room for at least one missed beat.
	if c.OrphanAfter < 2*c.HeartbeatInterval {
		c.OrphanAfter = 2 * c.HeartbeatInterval
	}
}
