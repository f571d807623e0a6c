package config

import (
	"fmt"
	"time"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("database.max_conns (%d) must be >= database.min_conns (%d)",
			c.Database.MaxConns, c.Database.MinConns)
	}

	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0 (got %d)", c.Redis.DB)
	}

	if c.Notify.AMQPURL == "" {
		return fmt.Errorf("notify.amqp_url must not be empty")
	}
	if c.Notify.Exchange == "" {
		return fmt.Errorf("notify.exchange must not be empty")
	}

	if err := c.Review.validate(); err != nil {
		return fmt.Errorf("review: %w", err)
	}

	return nil
}

func (r *ReviewConfig) validate() error {
	if r.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be > 0 (got %v)", r.SessionTTL)
	}
	if r.SessionTTL < time.Minute {
		return fmt.Errorf("session_ttl must be at least 1m (got %v)", r.SessionTTL)
	}
	return nil
}
