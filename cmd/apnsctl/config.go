package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/pushgate/apns/internal/config"
)

type fileConfig struct {
	PushHost     string `toml:"push_host"`
	PushPort     int    `toml:"push_port"`
	FeedbackHost string `toml:"feedback_host"`
	FeedbackPort int    `toml:"feedback_port"`

	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`

	ReadTimeout  string `toml:"read_timeout"`
	WriteTimeout string `toml:"write_timeout"`
}

// loadClientConfig overlays a partial TOML file onto the endpoint
// defaults. Only keys present in the file override anything.
func loadClientConfig(path string) (config.Config, error) {
	cfg := config.Config{}.WithDefaults()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.Config{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("push_host") {
		if host := strings.TrimSpace(raw.PushHost); host != "" {
			cfg.Push.Host = host
		}
	}
	if meta.IsDefined("push_port") {
		cfg.Push.Port = raw.PushPort
	}
	if meta.IsDefined("feedback_host") {
		if host := strings.TrimSpace(raw.FeedbackHost); host != "" {
			cfg.Feedback.Host = host
		}
	}
	if meta.IsDefined("feedback_port") {
		cfg.Feedback.Port = raw.FeedbackPort
	}
	if meta.IsDefined("cert_file") {
		cfg.TLS.CertFile = strings.TrimSpace(raw.CertFile)
	}
	if meta.IsDefined("key_file") {
		cfg.TLS.KeyFile = strings.TrimSpace(raw.KeyFile)
	}
	if meta.IsDefined("ca_file") {
		cfg.TLS.CAFile = strings.TrimSpace(raw.CAFile)
	}
	if meta.IsDefined("server_name") {
		cfg.TLS.ServerName = strings.TrimSpace(raw.ServerName)
	}
	if meta.IsDefined("insecure_skip_verify") {
		cfg.TLS.InsecureSkipVerify = raw.InsecureSkipVerify
	}
	if meta.IsDefined("read_timeout") {
		cfg.TLS.ReadTimeout = strings.TrimSpace(raw.ReadTimeout)
	}
	if meta.IsDefined("write_timeout") {
		cfg.TLS.WriteTimeout = strings.TrimSpace(raw.WriteTimeout)
	}

	return cfg, nil
}
