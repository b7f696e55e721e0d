package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for internal consistency. Amount fields
// are verified by the runtime conversions.
func (c *Config) Validate() error {
	if c.Pool.MaxSeniorJuniorRatio == 0 {
		return fmt.Errorf("pool: MaxSeniorJuniorRatio must be greater than zero")
	}
	if c.Pool.TranchesRiskAdjustmentBps > 10_000 {
		return fmt.Errorf("pool: TranchesRiskAdjustmentBps %d exceeds 10000", c.Pool.TranchesRiskAdjustmentBps)
	}
	if _, err := c.Pool.Settings(); err != nil {
		return err
	}
	if _, err := c.Pool.LPConfig(); err != nil {
		return err
	}
	if _, err := c.Pool.OwnerAddress(); err != nil {
		return err
	}
	if _, err := c.Pool.CallerAddress(); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Covers))
	for _, cover := range c.Covers {
		name := strings.TrimSpace(cover.Name)
		if name == "" {
			return fmt.Errorf("covers: every cover needs a Name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("covers: duplicate cover name %q", name)
		}
		seen[name] = struct{}{}
		if cover.CoverRateBps > 10_000 {
			return fmt.Errorf("covers.%s: CoverRateBps %d exceeds 10000", name, cover.CoverRateBps)
		}
		if _, err := cover.CoverConfig(); err != nil {
			return err
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log: unknown Format %q", c.Log.Format)
	}
	return nil
}
