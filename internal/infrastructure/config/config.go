package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Commlink.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Logging   LoggingConfig    `yaml:"logging"`
	Protocols []ProtocolConfig `yaml:"protocols"`
}

// ProtocolConfig describes one named protocol instance managed by the
// registry. Method selects the transport ("mqtt", "tcp"); the matching
// sub-section carries its settings.
type ProtocolConfig struct {
	Name    string        `yaml:"name"`
	Method  string        `yaml:"method"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	TCP     TCPConfig     `yaml:"tcp"`
	Session SessionConfig `yaml:"session"`
	Packet  PacketConfig  `yaml:"packet"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig `yaml:"broker"`
	Auth      MQTTAuthConfig   `yaml:"auth"`
	KeepAlive int              `yaml:"keepalive"`
	QoS       int              `yaml:"qos"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SessionConfig contains session engine settings: reconnect policy,
// outbound queue bound, and connect mode.
type SessionConfig struct {
	Reconnect      ReconnectConfig `yaml:"reconnect"`
	QueueCapacity  int             `yaml:"queue_capacity"`
	ConnectTimeout int             `yaml:"connect_timeout"`
	Mode           string          `yaml:"mode"` // "blocking" or "background"
}

// ReconnectConfig contains reconnection backoff settings.
// Delays are in seconds; MaxAttempts of 0 means retry forever.
type ReconnectConfig struct {
	InitialDelay int     `yaml:"initial_delay"`
	MaxDelay     int     `yaml:"max_delay"`
	Multiplier   float64 `yaml:"multiplier"`
	MaxAttempts  int     `yaml:"max_attempts"`
}

// TCPConfig contains TCP endpoint settings for request/response use.
// Timeouts are in milliseconds; ReadTimeout is the non-blocking read
// poll window.
type TCPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	DialTimeout int    `yaml:"dial_timeout"`
	ReadTimeout int    `yaml:"read_timeout"`
}

// PacketConfig contains frame marker settings for stream transports.
// Empty values fall back to the codec defaults (STX/ETX).
type PacketConfig struct {
	Head string `yaml:"head"`
	Tail string `yaml:"tail"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file, applies defaults and
// environment variable overrides, and validates the result.
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply per-instance defaults for sections the file omitted
	for i := range cfg.Protocols {
		applyProtocolDefaults(&cfg.Protocols[i])
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// DefaultSession returns the session settings used when a protocol
// entry omits the session section.
func DefaultSession() SessionConfig {
	return SessionConfig{
		Reconnect: ReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
			Multiplier:   2,
			MaxAttempts:  0,
		},
		QueueCapacity:  1000,
		ConnectTimeout: 10,
		Mode:           "blocking",
	}
}

// applyProtocolDefaults fills zero-valued fields of a protocol entry.
func applyProtocolDefaults(p *ProtocolConfig) {
	def := DefaultSession()
	if p.Session.Reconnect.InitialDelay == 0 {
		p.Session.Reconnect.InitialDelay = def.Reconnect.InitialDelay
	}
	if p.Session.Reconnect.MaxDelay == 0 {
		p.Session.Reconnect.MaxDelay = def.Reconnect.MaxDelay
	}
	if p.Session.Reconnect.Multiplier == 0 {
		p.Session.Reconnect.Multiplier = def.Reconnect.Multiplier
	}
	if p.Session.QueueCapacity == 0 {
		p.Session.QueueCapacity = def.QueueCapacity
	}
	if p.Session.ConnectTimeout == 0 {
		p.Session.ConnectTimeout = def.ConnectTimeout
	}
	if p.Session.Mode == "" {
		p.Session.Mode = def.Mode
	}
	if p.Method == "mqtt" {
		if p.MQTT.Broker.Port == 0 {
			p.MQTT.Broker.Port = 1883
		}
		if p.MQTT.KeepAlive == 0 {
			p.MQTT.KeepAlive = 60
		}
	}
	if p.Method == "tcp" {
		if p.TCP.DialTimeout == 0 {
			p.TCP.DialTimeout = 5000
		}
		if p.TCP.ReadTimeout == 0 {
			p.TCP.ReadTimeout = 10
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: COMMLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Logging
	if v := os.Getenv("COMMLINK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// MQTT credentials apply to every MQTT instance; secrets belong in
	// the environment, not in config files.
	for i := range cfg.Protocols {
		if cfg.Protocols[i].Method != "mqtt" {
			continue
		}
		if v := os.Getenv("COMMLINK_MQTT_USERNAME"); v != "" {
			cfg.Protocols[i].MQTT.Auth.Username = v
		}
		if v := os.Getenv("COMMLINK_MQTT_PASSWORD"); v != "" {
			cfg.Protocols[i].MQTT.Auth.Password = v
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	seen := make(map[string]bool)
	for i := range c.Protocols {
		p := &c.Protocols[i]
		prefix := fmt.Sprintf("protocols[%d]", i)

		if p.Name == "" {
			errs = append(errs, prefix+".name is required")
		} else if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("%s.name %q is not unique", prefix, p.Name))
		}
		seen[p.Name] = true

		switch p.Method {
		case "mqtt":
			if p.MQTT.Broker.Host == "" {
				errs = append(errs, prefix+".mqtt.broker.host is required")
			}
			if p.MQTT.QoS < 0 || p.MQTT.QoS > 2 {
				errs = append(errs, prefix+".mqtt.qos must be 0, 1, or 2")
			}
		case "tcp":
			if p.TCP.Host == "" {
				errs = append(errs, prefix+".tcp.host is required")
			}
			if p.TCP.Port < 1 || p.TCP.Port > 65535 {
				errs = append(errs, prefix+".tcp.port must be between 1 and 65535")
			}
		case "":
			errs = append(errs, prefix+".method is required")
		default:
			errs = append(errs, fmt.Sprintf("%s.method %q is not supported", prefix, p.Method))
		}

		if p.Session.Mode != "blocking" && p.Session.Mode != "background" {
			errs = append(errs, prefix+".session.mode must be \"blocking\" or \"background\"")
		}
		if p.Session.Reconnect.Multiplier < 1 {
			errs = append(errs, prefix+".session.reconnect.multiplier must be >= 1")
		}
		if p.Session.Reconnect.MaxDelay < p.Session.Reconnect.InitialDelay {
			errs = append(errs, prefix+".session.reconnect.max_delay must be >= initial_delay")
		}
		if p.Session.QueueCapacity < 1 {
			errs = append(errs, prefix+".session.queue_capacity must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetConnectTimeout returns the connect timeout as a Duration.
func (s SessionConfig) GetConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeout) * time.Second
}

// GetInitialDelay returns the initial reconnect delay as a Duration.
func (r ReconnectConfig) GetInitialDelay() time.Duration {
	return time.Duration(r.InitialDelay) * time.Second
}

// GetMaxDelay returns the maximum reconnect delay as a Duration.
func (r ReconnectConfig) GetMaxDelay() time.Duration {
	return time.Duration(r.MaxDelay) * time.Second
}

// GetDialTimeout returns the TCP dial timeout as a Duration.
func (t TCPConfig) GetDialTimeout() time.Duration {
	return time.Duration(t.DialTimeout) * time.Millisecond
}

// GetReadTimeout returns the TCP read poll timeout as a Duration.
func (t TCPConfig) GetReadTimeout() time.Duration {
	return time.Duration(t.ReadTimeout) * time.Millisecond
}
