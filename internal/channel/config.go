package channel

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

var (
	// ErrConfiguration classes every pre-connection setup failure.
	ErrConfiguration = errors.New("channel: configuration")
	// ErrConnection classes every dial, handshake, read, or write failure.
	ErrConnection = errors.New("channel: connection")

	ErrCertFileRequired = fmt.Errorf("%w: client certificate file required", ErrConfiguration)
)

// Config holds the transport settings for one certificate-authenticated
// channel. KeyFile defaults to CertFile for combined PEM bundles.
type Config struct {
	CertFile           string
	KeyFile            string
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool

	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// DefaultConfig returns the transport reliability defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     15 * time.Second,
	}
}

// WithDefaults fills unset durations and the key file fallback.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if strings.TrimSpace(c.KeyFile) == "" {
		c.KeyFile = c.CertFile
	}
	return c
}

// Validate checks the certificate material is present and readable. It
// runs before any socket exists so misconfiguration never costs a dial.
func (c Config) Validate() error {
	if strings.TrimSpace(c.CertFile) == "" {
		return ErrCertFileRequired
	}
	if err := readable(c.CertFile); err != nil {
		return fmt.Errorf("%w: certificate file %q not readable: %v", ErrConfiguration, c.CertFile, err)
	}
	if key := strings.TrimSpace(c.KeyFile); key != "" && key != c.CertFile {
		if err := readable(key); err != nil {
			return fmt.Errorf("%w: key file %q not readable: %v", ErrConfiguration, key, err)
		}
	}
	if ca := strings.TrimSpace(c.CAFile); ca != "" {
		if err := readable(ca); err != nil {
			return fmt.Errorf("%w: ca file %q not readable: %v", ErrConfiguration, ca, err)
		}
	}
	return nil
}

func readable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
