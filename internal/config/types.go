package config

import "time"

// Config represents the complete bot configuration
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Bot      BotConfig      `toml:"bot" yaml:"bot"`
	Limits   LimitsConfig   `toml:"limits" yaml:"limits"`
	Database DatabaseConfig `toml:"database" yaml:"database"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
	APIs     APIsConfig     `toml:"apis" yaml:"apis"`
}

// ServerConfig contains IRC server connection settings
type ServerConfig struct {
	Address          string `toml:"address" yaml:"address" validate:"required,hostname_rfc1123|ip"`
	Port             int    `toml:"port" yaml:"port" validate:"min=1,max=65535"`
	TLS              bool   `toml:"tls" yaml:"tls"`
	Nickname         string `toml:"nickname" yaml:"nickname" validate:"required,max=30"`
	Username         string `toml:"username" yaml:"username" validate:"required"`
	Realname         string `toml:"realname" yaml:"realname" validate:"required"`
	MaxMessageLength int    `toml:"max_message_length" yaml:"max_message_length" validate:"min=16,max=510"`
}

// BotConfig contains bot behavior settings
type BotConfig struct {
	CommandPrefix string   `toml:"command_prefix" yaml:"command_prefix" validate:"required"`
	Channels      []string `toml:"channels" yaml:"channels" validate:"dive,required"`
	AdminNick     string   `toml:"admin_nick" yaml:"admin_nick"`
	QuitMessage   string   `toml:"quit_message" yaml:"quit_message"`
}

// LimitsConfig contains flood prevention, worker and timeout settings.
// Durations without a unit suffix in their name are in seconds.
type LimitsConfig struct {
	JoinDelayMS       int `toml:"join_delay_ms" yaml:"join_delay_ms" validate:"min=0"`
	SendIntervalMS    int `toml:"send_interval_ms" yaml:"send_interval_ms" validate:"min=0"`
	SendBurst         int `toml:"send_burst" yaml:"send_burst" validate:"min=1"`
	MaxWorkers        int `toml:"max_workers" yaml:"max_workers" validate:"min=1"`
	LaneQueueSize     int `toml:"lane_queue_size" yaml:"lane_queue_size" validate:"min=1"`
	HandlerTimeout    int `toml:"handler_timeout" yaml:"handler_timeout" validate:"min=1"`
	ShutdownGrace     int `toml:"shutdown_grace" yaml:"shutdown_grace" validate:"min=0"`
	CommandCooldown   int `toml:"command_cooldown" yaml:"command_cooldown" validate:"min=0"`
	ConnectTimeout    int `toml:"connect_timeout" yaml:"connect_timeout" validate:"min=1"`
	WriteTimeout      int `toml:"write_timeout" yaml:"write_timeout" validate:"min=1"`
	ReadTimeout       int `toml:"read_timeout" yaml:"read_timeout" validate:"min=0"`
	ReconnectDelayMin int `toml:"reconnect_delay_min" yaml:"reconnect_delay_min" validate:"min=1"`
	ReconnectDelayMax int `toml:"reconnect_delay_max" yaml:"reconnect_delay_max" validate:"min=1"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path           string `toml:"path" yaml:"path" validate:"required"`
	RetentionDays  int    `toml:"retention_days" yaml:"retention_days" validate:"min=1"`
	VacuumInterval int    `toml:"vacuum_interval" yaml:"vacuum_interval" validate:"min=1"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	ErrorLog     string `toml:"error_log" yaml:"error_log" validate:"required"`
	MaxLogSizeMB int    `toml:"max_log_size_mb" yaml:"max_log_size_mb" validate:"min=1"`
	MaxLogFiles  int    `toml:"max_log_files" yaml:"max_log_files" validate:"min=1"`
	Debug        bool   `toml:"debug" yaml:"debug"`
}

// APIsConfig contains settings for the command collaborators
type APIsConfig struct {
	WeatherAPIKey   string `toml:"weather_api_key" yaml:"weather_api_key"`
	TimeAPIKey      string `toml:"time_api_key" yaml:"time_api_key"`
	ElectricityURL  string `toml:"electricity_url" yaml:"electricity_url" validate:"omitempty,url"`
	RequestTimeout  int    `toml:"request_timeout" yaml:"request_timeout" validate:"min=1"`
	TitleCacheHours int    `toml:"title_cache_hours" yaml:"title_cache_hours" validate:"min=0"`
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// GetJoinDelayDuration returns the delay between JOIN requests
func (c *LimitsConfig) GetJoinDelayDuration() time.Duration {
	return time.Duration(c.JoinDelayMS) * time.Millisecond
}

// GetSendIntervalDuration returns the minimum spacing of outbound messages
func (c *LimitsConfig) GetSendIntervalDuration() time.Duration {
	return time.Duration(c.SendIntervalMS) * time.Millisecond
}

// GetHandlerTimeoutDuration returns the per-invocation handler timeout
func (c *LimitsConfig) GetHandlerTimeoutDuration() time.Duration {
	return seconds(c.HandlerTimeout)
}

// GetShutdownGraceDuration returns how long in-flight handlers may run after stop
func (c *LimitsConfig) GetShutdownGraceDuration() time.Duration {
	return seconds(c.ShutdownGrace)
}

// GetCommandCooldownDuration returns the per-nick command cooldown
func (c *LimitsConfig) GetCommandCooldownDuration() time.Duration {
	return seconds(c.CommandCooldown)
}

// GetConnectTimeoutDuration returns the dial timeout
func (c *LimitsConfig) GetConnectTimeoutDuration() time.Duration {
	return seconds(c.ConnectTimeout)
}

// GetWriteTimeoutDuration returns the write deadline for one line
func (c *LimitsConfig) GetWriteTimeoutDuration() time.Duration {
	return seconds(c.WriteTimeout)
}

// GetReadTimeoutDuration returns the idle read timeout, 0 when disabled
func (c *LimitsConfig) GetReadTimeoutDuration() time.Duration {
	return seconds(c.ReadTimeout)
}

// GetReconnectDelayMinDuration returns the minimum reconnect delay as a time.Duration
func (c *LimitsConfig) GetReconnectDelayMinDuration() time.Duration {
	return seconds(c.ReconnectDelayMin)
}

// GetReconnectDelayMaxDuration returns the maximum reconnect delay as a time.Duration
func (c *LimitsConfig) GetReconnectDelayMaxDuration() time.Duration {
	return seconds(c.ReconnectDelayMax)
}

// GetVacuumIntervalDuration returns the vacuum interval as a time.Duration
func (c *DatabaseConfig) GetVacuumIntervalDuration() time.Duration {
	return seconds(c.VacuumInterval)
}

// GetRequestTimeoutDuration returns the HTTP timeout for collaborator requests
func (c *APIsConfig) GetRequestTimeoutDuration() time.Duration {
	return seconds(c.RequestTimeout)
}

// GetTitleCacheTTL returns how long fetched URL titles are reused
func (c *APIsConfig) GetTitleCacheTTL() time.Duration {
	return time.Duration(c.TitleCacheHours) * time.Hour
}
