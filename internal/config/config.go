package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "config/bot.toml"
)

// Load reads and parses the configuration file from the specified path.
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
// If path is empty, it uses the default path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found at %s", path)
	}

	cfg := DefaultConfig()
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file: %w", err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrCreate attempts to load the configuration file, and if it doesn't exist,
// creates a default configuration file and returns the default config.
func LoadOrCreate(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("Configuration file not found. Creating default configuration at %s\n", path)

		defaultCfg := DefaultConfig()
		if err := CreateDefault(path, defaultCfg); err != nil {
			return nil, fmt.Errorf("failed to create default configuration: %w", err)
		}

		applyEnv(defaultCfg)
		return defaultCfg, nil
	}

	return Load(path)
}

// CreateDefault writes cfg to path, as YAML or TOML depending on the extension
func CreateDefault(path string, cfg *Config) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		return enc.Close()
	}

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults for QuakeNet
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:          "dreamhack.se.quakenet.org",
			Port:             6667,
			TLS:              false,
			Nickname:         "SuurinJaKaunein",
			Username:         "kukisti",
			Realname:         "Kukisti IRC Bot",
			MaxMessageLength: 400,
		},
		Bot: BotConfig{
			CommandPrefix: "!",
			Channels:      []string{"#bottest123"},
			AdminNick:     "",
			QuitMessage:   "Bye",
		},
		Limits: LimitsConfig{
			JoinDelayMS:       1000,
			SendIntervalMS:    700,
			SendBurst:         3,
			MaxWorkers:        4,
			LaneQueueSize:     16,
			HandlerTimeout:    10,
			ShutdownGrace:     3,
			CommandCooldown:   0,
			ConnectTimeout:    15,
			WriteTimeout:      10,
			ReadTimeout:       300,
			ReconnectDelayMin: 5,
			ReconnectDelayMax: 300,
		},
		Database: DatabaseConfig{
			Path:           "data/bot.db",
			RetentionDays:  90,
			VacuumInterval: 86400,
		},
		Logging: LoggingConfig{
			ErrorLog:     "data/error.log",
			MaxLogSizeMB: 10,
			MaxLogFiles:  5,
		},
		APIs: APIsConfig{
			ElectricityURL:  "https://api.porssisahko.net/v1/latest-prices.json",
			RequestTimeout:  5,
			TitleCacheHours: 24,
		},
	}
}

// Validate checks struct constraints and the cross-field rules
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid configuration: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if strings.ContainsAny(cfg.Server.Nickname, " \t,*?!@") {
		return fmt.Errorf("server.nickname contains invalid characters: %q", cfg.Server.Nickname)
	}
	if strings.ContainsAny(cfg.Server.Username, " \t@") {
		return fmt.Errorf("server.username contains invalid characters: %q", cfg.Server.Username)
	}
	if strings.ContainsAny(cfg.Bot.CommandPrefix, " \t") {
		return fmt.Errorf("bot.command_prefix must not contain whitespace")
	}

	seen := make(map[string]bool, len(cfg.Bot.Channels))
	for _, ch := range cfg.Bot.Channels {
		if !strings.HasPrefix(ch, "#") && !strings.HasPrefix(ch, "&") {
			return fmt.Errorf("bot.channels: %q must start with # or &", ch)
		}
		if strings.ContainsAny(ch, " ,\a") {
			return fmt.Errorf("bot.channels: %q contains invalid characters", ch)
		}
		key := strings.ToLower(ch)
		if seen[key] {
			return fmt.Errorf("bot.channels: %q is listed twice", ch)
		}
		seen[key] = true
	}

	if cfg.Limits.ReconnectDelayMin > cfg.Limits.ReconnectDelayMax {
		return fmt.Errorf("limits.reconnect_delay_min (%d) cannot be greater than reconnect_delay_max (%d)",
			cfg.Limits.ReconnectDelayMin, cfg.Limits.ReconnectDelayMax)
	}

	return nil
}

// applyEnv fills API keys from the environment when the file leaves them empty
func applyEnv(cfg *Config) {
	if cfg.APIs.WeatherAPIKey == "" {
		cfg.APIs.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	}
	if cfg.APIs.TimeAPIKey == "" {
		cfg.APIs.TimeAPIKey = os.Getenv("TIME_API_KEY")
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
