package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode        string `yaml:"mode"`
	PollSeconds int    `yaml:"poll_seconds"`
	Source      struct {
		Kind    string `yaml:"kind"`
		DataDir string `yaml:"data_dir"`
		Flex    struct {
			TokenEnv         string `yaml:"token_env"`
			TradesQueryID    string `yaml:"trades_query_id"`
			PortfolioQueryID string `yaml:"portfolio_query_id"`
		} `yaml:"flex"`
	} `yaml:"source"`
	Sinks struct {
		CLI      bool `yaml:"cli"`
		Database bool `yaml:"database"`
	} `yaml:"sinks"`
	Database struct {
		DSN    string `yaml:"dsn"`
		DSNEnv string `yaml:"dsn_env"`
	} `yaml:"database"`
	Web struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"web"`
	Portfolio struct {
		Enabled     bool   `yaml:"enabled"`
		PublishTime string `yaml:"publish_time"`
	} `yaml:"portfolio"`
	Publog struct {
		Dir          string `yaml:"dir"`
		CompressDays int    `yaml:"compress_days"`
	} `yaml:"publog"`
}

// DatabaseDSN resolves the connection string, preferring the env
// variable named by dsn_env so credentials stay out of the yaml file.
func (c *Config) DatabaseDSN() string {
	if c.Database.DSNEnv != "" {
		if dsn := os.Getenv(c.Database.DSNEnv); dsn != "" {
			return dsn
		}
	}
	return c.Database.DSN
}

// FlexToken reads the web-service token from the env variable named
// by token_env. Tokens never live in the yaml file.
func (c *Config) FlexToken() string {
	return os.Getenv(c.Source.Flex.TokenEnv)
}

func (c *Config) Validate() error {
	if c.Mode != "LIVE" && c.Mode != "REPLAY" {
		return fmt.Errorf("invalid mode '%s': must be 'LIVE' or 'REPLAY'", c.Mode)
	}
	switch c.Source.Kind {
	case "flexjson":
		if c.Source.DataDir == "" {
			return errors.New("source.data_dir cannot be empty")
		}
	case "flexweb":
		if c.Source.Flex.TradesQueryID == "" || c.Source.Flex.PortfolioQueryID == "" {
			return errors.New("flexweb source requires trades_query_id and portfolio_query_id")
		}
		if c.FlexToken() == "" {
			return fmt.Errorf("flexweb source enabled but %s is not set", c.Source.Flex.TokenEnv)
		}
	default:
		return fmt.Errorf("invalid source.kind '%s': must be 'flexjson' or 'flexweb'", c.Source.Kind)
	}
	if !c.Sinks.CLI && !c.Sinks.Database {
		return errors.New("at least one sink must be enabled")
	}
	if c.Sinks.Database && c.DatabaseDSN() == "" {
		return errors.New("database sink enabled but no DSN configured")
	}
	if c.Web.Enabled && !c.Sinks.Database {
		return errors.New("web viewer requires the database sink")
	}
	if _, err := time.Parse("15:04", c.Portfolio.PublishTime); err != nil {
		return fmt.Errorf("invalid portfolio.publish_time '%s': must be HH:MM", c.Portfolio.PublishTime)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.PollSeconds == 0 {
		c.PollSeconds = 60
	}
	if c.Mode == "" {
		c.Mode = "LIVE"
	}
	if c.Source.Kind == "" {
		c.Source.Kind = "flexjson"
	}
	if c.Source.Flex.TokenEnv == "" {
		c.Source.Flex.TokenEnv = "FLEX_TOKEN"
	}
	if c.Database.DSNEnv == "" {
		c.Database.DSNEnv = "DATABASE_URL"
	}
	if c.Web.Addr == "" {
		c.Web.Addr = ":8080"
	}
	if c.Portfolio.PublishTime == "" {
		c.Portfolio.PublishTime = "21:30"
	}
	if c.Publog.Dir == "" {
		c.Publog.Dir = "publog"
	}
	if c.Publog.CompressDays == 0 {
		c.Publog.CompressDays = 7
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
