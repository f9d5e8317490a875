// Package config provides Viper-based configuration loading for the skirmish engine.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameConfig holds the tunable rules of the round and action engines.
type GameConfig struct {
	// GoodEventChance maps a playable round number (1-3) to the percent
	// probability (0-100) of rolling the good world event.
	GoodEventChance map[int]int `mapstructure:"good_event_chance"`
	// FollowUpDelay is the fixed pause between deferred follow-up messages.
	FollowUpDelay time.Duration `mapstructure:"follow_up_delay"`
	// MaxAttacksPerRecord is the upper bound on attacks a single scheduled
	// attack record may carry. Records above it are treated as corrupt.
	MaxAttacksPerRecord int `mapstructure:"max_attacks_per_record"`
	// HistoryLimit caps the number of round results retained per tenant.
	HistoryLimit int `mapstructure:"history_limit"`
	// RoundInterval is how often the round daemon advances each tenant's
	// round. Zero disables automatic advancement.
	RoundInterval time.Duration `mapstructure:"round_interval"`
}

// GoodEventChanceFor returns the configured good-event probability for the
// given playable round, falling back to the historical 75/50/25 defaults.
//
// Postcondition: Returns a value in [0, 100].
func (g GameConfig) GoodEventChanceFor(round int) int {
	if chance, ok := g.GoodEventChance[round]; ok {
		return chance
	}
	switch round {
	case 1:
		return 75
	case 2:
		return 50
	case 3:
		return 25
	default:
		return 0
	}
}

// ScriptingConfig holds Lua collaborator-hook settings.
type ScriptingConfig struct {
	// ScriptRoot is the directory of tenant hook scripts; empty disables scripting.
	ScriptRoot string `mapstructure:"script_root"`
	// InstructionLimit bounds Lua opcodes per hook call; 0 uses the default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// ContentConfig holds paths to static game content.
type ContentConfig struct {
	// ItemsDir is the directory of item definition YAML files.
	ItemsDir string `mapstructure:"items_dir"`
	// TriggersDir is the directory of trigger (action list) YAML files.
	TriggersDir string `mapstructure:"triggers_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Game      GameConfig      `mapstructure:"game"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
	Content   ContentConfig   `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateScripting(c.Scripting); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	for round, chance := range g.GoodEventChance {
		if round < 1 || round > 3 {
			errs = append(errs, fmt.Sprintf("game.good_event_chance round must be 1-3, got %d", round))
		}
		if chance < 0 || chance > 100 {
			errs = append(errs, fmt.Sprintf("game.good_event_chance[%d] must be 0-100, got %d", round, chance))
		}
	}
	if g.FollowUpDelay < 0 {
		errs = append(errs, "game.follow_up_delay must not be negative")
	}
	if g.MaxAttacksPerRecord < 1 {
		errs = append(errs, fmt.Sprintf("game.max_attacks_per_record must be >= 1, got %d", g.MaxAttacksPerRecord))
	}
	if g.HistoryLimit < 0 {
		errs = append(errs, fmt.Sprintf("game.history_limit must be >= 0, got %d", g.HistoryLimit))
	}
	if g.RoundInterval < 0 {
		errs = append(errs, "game.round_interval must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateScripting(s ScriptingConfig) error {
	if s.InstructionLimit < 0 {
		return fmt.Errorf("scripting.instruction_limit must be >= 0, got %d", s.InstructionLimit)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with SKIRMISH_ prefix
	v.SetEnvPrefix("SKIRMISH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "skirmish")
	v.SetDefault("database.password", "skirmish")
	v.SetDefault("database.name", "skirmish")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("game.good_event_chance", map[string]int{"1": 75, "2": 50, "3": 25})
	v.SetDefault("game.follow_up_delay", "750ms")
	v.SetDefault("game.max_attacks_per_record", 1000)
	v.SetDefault("game.history_limit", 50)
	v.SetDefault("game.round_interval", "0s")

	v.SetDefault("scripting.script_root", "")
	v.SetDefault("scripting.instruction_limit", 0)

	v.SetDefault("content.items_dir", "content/items")
	v.SetDefault("content.triggers_dir", "content/triggers")
}
