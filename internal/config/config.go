// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Device   DeviceConfig   `mapstructure:"device"`
	Stream   StreamConfig   `mapstructure:"stream"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TLS             TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DeviceConfig represents glove connection configuration
type DeviceConfig struct {
	SampleWindow int             `mapstructure:"sample_window"`
	Wifi         WifiConfig      `mapstructure:"wifi"`
	Bluetooth    BluetoothConfig `mapstructure:"bluetooth"`
	Serial       SerialConfig    `mapstructure:"serial"`
}

// WifiConfig represents the TCP transport configuration
type WifiConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	KeepAlive      bool          `mapstructure:"keep_alive"`
}

// BluetoothConfig represents the RFCOMM transport configuration
type BluetoothConfig struct {
	Adapter        string        `mapstructure:"adapter"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ProfilePath    string        `mapstructure:"profile_path"`
}

// SerialConfig represents the wired serial transport configuration
type SerialConfig struct {
	BaudRate       int           `mapstructure:"baud_rate"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	USBOnly        bool          `mapstructure:"usb_only"`
}

// StreamConfig represents the WebSocket stream configuration
type StreamConfig struct {
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PongTimeout  time.Duration `mapstructure:"pong_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	SendBuffer   int           `mapstructure:"send_buffer"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../../internal/config")

	return load(v)
}

// LoadFile loads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// Environment variable support
	v.SetEnvPrefix("EMG_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file; defaults are enough to run without one
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns the configuration built from defaults only
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	// Defaults always decode
	_ = v.Unmarshal(&config)
	return &config
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.tls.enabled", false)

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Device defaults
	v.SetDefault("device.sample_window", 256)

	v.SetDefault("device.wifi.connect_timeout", "5s")
	v.SetDefault("device.wifi.read_timeout", "0s")
	v.SetDefault("device.wifi.keep_alive", true)

	v.SetDefault("device.bluetooth.adapter", "hci0")
	v.SetDefault("device.bluetooth.connect_timeout", "10s")
	v.SetDefault("device.bluetooth.profile_path", "/com/garpa/emg/profile")

	v.SetDefault("device.serial.baud_rate", 115200)
	v.SetDefault("device.serial.connect_timeout", "5s")
	v.SetDefault("device.serial.usb_only", true)

	// Stream defaults
	v.SetDefault("stream.write_timeout", "10s")
	v.SetDefault("stream.pong_timeout", "60s")
	v.SetDefault("stream.ping_interval", "54s")
	v.SetDefault("stream.send_buffer", 512)

	// App defaults
	v.SetDefault("app.name", "emg-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	// Basic validation
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	// Validate device settings
	if config.Device.SampleWindow <= 0 {
		return fmt.Errorf("device.sample_window must be positive")
	}
	if config.Device.Wifi.ConnectTimeout <= 0 {
		return fmt.Errorf("device.wifi.connect_timeout must be positive")
	}
	if config.Device.Wifi.ReadTimeout < 0 {
		return fmt.Errorf("device.wifi.read_timeout must not be negative")
	}
	if config.Device.Bluetooth.ConnectTimeout <= 0 {
		return fmt.Errorf("device.bluetooth.connect_timeout must be positive")
	}
	if config.Device.Bluetooth.Adapter == "" {
		return fmt.Errorf("device.bluetooth.adapter is required")
	}
	if config.Device.Serial.ConnectTimeout <= 0 {
		return fmt.Errorf("device.serial.connect_timeout must be positive")
	}
	if config.Device.Serial.BaudRate <= 0 {
		return fmt.Errorf("device.serial.baud_rate must be positive")
	}
	if config.Stream.SendBuffer <= 0 {
		return fmt.Errorf("stream.send_buffer must be positive")
	}

	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
