package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/pushgate/apns/internal/channel"
)

// Defaults point at the production gateway endpoints of the legacy
// binary protocol.
const (
	DefaultPushHost     = "gateway.push.apple.com"
	DefaultPushPort     = 2195
	DefaultFeedbackHost = "feedback.push.apple.com"
	DefaultFeedbackPort = 2196
)

type Config struct {
	Push     EndpointConfig `toml:"push"`
	Feedback EndpointConfig `toml:"feedback"`
	TLS      TLSConfig      `toml:"tls"`
	AMQP     AMQPConfig     `toml:"amqp"`
	Redis    RedisConfig    `toml:"redis"`
	Ops      OpsConfig      `toml:"ops"`
}

type EndpointConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

func (e EndpointConfig) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

type TLSConfig struct {
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`

	ConnectTimeout   string `toml:"connect_timeout"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	ReadTimeout      string `toml:"read_timeout"`
	WriteTimeout     string `toml:"write_timeout"`
}

type AMQPConfig struct {
	URL           string `toml:"url"`
	Queue         string `toml:"queue"`
	DLQ           string `toml:"dlq"`
	Prefetch      int    `toml:"prefetch"`
	Workers       int    `toml:"workers"`
	MaxDeliveries int    `toml:"max_deliveries"`
}

type RedisConfig struct {
	Addr string `toml:"addr"`
}

type OpsConfig struct {
	Addr string `toml:"addr"`

	// FeedbackPoll controls how often the daemon drains the feedback
	// stream. Empty disables polling.
	FeedbackPoll string `toml:"feedback_poll"`
}

// Load reads a TOML config file, applies endpoint defaults, and
// validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	cfg = cfg.WithDefaults()
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) WithDefaults() Config {
	if c.Push.Host == "" {
		c.Push.Host = DefaultPushHost
	}
	if c.Push.Port == 0 {
		c.Push.Port = DefaultPushPort
	}
	if c.Feedback.Host == "" {
		c.Feedback.Host = DefaultFeedbackHost
	}
	if c.Feedback.Port == 0 {
		c.Feedback.Port = DefaultFeedbackPort
	}
	if c.AMQP.Queue == "" {
		c.AMQP.Queue = "pushgate.apns"
	}
	if c.Ops.Addr == "" {
		c.Ops.Addr = ":9400"
	}
	return c
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.TLS.CertFile) == "" {
		return fmt.Errorf("config missing tls.cert_file")
	}
	if cfg.Push.Port <= 0 || cfg.Push.Port > 65535 {
		return fmt.Errorf("config push.port out of range: %d", cfg.Push.Port)
	}
	if cfg.Feedback.Port <= 0 || cfg.Feedback.Port > 65535 {
		return fmt.Errorf("config feedback.port out of range: %d", cfg.Feedback.Port)
	}
	for _, d := range []struct {
		name  string
		value string
	}{
		{"tls.connect_timeout", cfg.TLS.ConnectTimeout},
		{"tls.handshake_timeout", cfg.TLS.HandshakeTimeout},
		{"tls.read_timeout", cfg.TLS.ReadTimeout},
		{"tls.write_timeout", cfg.TLS.WriteTimeout},
		{"ops.feedback_poll", cfg.Ops.FeedbackPoll},
	} {
		if strings.TrimSpace(d.value) == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("config %s invalid: %w", d.name, err)
		}
	}
	return nil
}

// ChannelConfig converts the TLS section into transport settings.
func (c Config) ChannelConfig() channel.Config {
	out := channel.Config{
		CertFile:           c.TLS.CertFile,
		KeyFile:            c.TLS.KeyFile,
		CAFile:             c.TLS.CAFile,
		ServerName:         c.TLS.ServerName,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}
	out.ConnectTimeout = parseDuration(c.TLS.ConnectTimeout)
	out.HandshakeTimeout = parseDuration(c.TLS.HandshakeTimeout)
	out.ReadTimeout = parseDuration(c.TLS.ReadTimeout)
	out.WriteTimeout = parseDuration(c.TLS.WriteTimeout)
	return out.WithDefaults()
}

// FeedbackPollInterval returns the configured poll cadence, or zero
// when polling is disabled.
func (c Config) FeedbackPollInterval() time.Duration {
	return parseDuration(c.Ops.FeedbackPoll)
}

func parseDuration(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
