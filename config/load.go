package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/robfig/cron/v3"
)

// Load reads the YAML file at path when it exists and overlays WORKSAFETY_* env vars.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	path = strings.TrimSpace(path)
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			return cfg, cfg.Validate()
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c *AppConfig) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported db_driver %q", c.DBDriver)
	}
	if c.IsPostgres() && strings.TrimSpace(c.DBURL) == "" {
		return errors.New("db_url is required for postgres")
	}
	if !c.IsPostgres() && strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db_path is required for sqlite")
	}
	if c.TLSEnabled && (c.TLSCert == "" || c.TLSKey == "") {
		return errors.New("tls_cert and tls_key are required when tls is enabled")
	}
	if strings.TrimSpace(c.Incidents.RefPrefix) == "" || strings.TrimSpace(c.Plans.RefPrefix) == "" {
		return errors.New("reference prefixes must not be empty")
	}
	if c.Incidents.RefPrefix == c.Plans.RefPrefix {
		return errors.New("incident and plan action prefixes must differ")
	}
	if c.Incidents.PerPage <= 0 {
		c.Incidents.PerPage = 5
	}
	if c.Incidents.MaxPerPage < c.Incidents.PerPage {
		c.Incidents.MaxPerPage = c.Incidents.PerPage
	}
	if c.Plans.PerPage <= 0 {
		c.Plans.PerPage = 10
	}
	if c.Sites.MaxLatitude <= 0 || c.Sites.MaxLatitude > 90 {
		c.Sites.MaxLatitude = 90
	}
	if c.Sites.MaxLongitude <= 0 || c.Sites.MaxLongitude > 180 {
		c.Sites.MaxLongitude = 180
	}
	if c.Rewards.LeaderboardSize <= 0 {
		c.Rewards.LeaderboardSize = 10
	}
	if c.Rewards.IncidentPoints < 0 || c.Rewards.WeeklyPoints < 0 || c.Rewards.MonthlyPoints < 0 || c.Rewards.QuarterlyPoints < 0 {
		return errors.New("reward points must not be negative")
	}
	if c.Rewards.WeeklyWindowDays <= 0 || c.Rewards.MonthlyWindowDays <= 0 || c.Rewards.QuarterlyWindowDays <= 0 {
		return errors.New("bonus windows must be positive")
	}
	if c.Scheduler.Enabled {
		for name, spec := range map[string]string{
			"weekly_spec":    c.Scheduler.WeeklySpec,
			"monthly_spec":   c.Scheduler.MonthlySpec,
			"quarterly_spec": c.Scheduler.QuarterlySpec,
		} {
			if _, err := cron.ParseStandard(spec); err != nil {
				return fmt.Errorf("scheduler %s: %w", name, err)
			}
		}
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			return fmt.Errorf("scheduler timezone: %w", err)
		}
	}
	return nil
}
