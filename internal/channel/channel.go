// Package channel opens and owns one certificate-authenticated TLS
// connection to a push or feedback endpoint. A channel belongs to a
// single logical operation from Open to Close and is never shared.
package channel

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// Channel is one open encrypted connection.
type Channel struct {
	conn *tls.Conn
	cfg  Config

	closeOnce sync.Once
	closeErr  error
}

// Open validates cfg, dials addr, and completes the TLS handshake
// presenting the client certificate. Configuration problems surface as
// ErrConfiguration before any socket is created; network and handshake
// failures surface as ErrConnection.
func Open(ctx context.Context, addr string, cfg Config) (*Channel, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tlsCfg, err := clientTLSConfig(addr, cfg)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, addr, err)
	}

	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, fmt.Errorf("%w: tls handshake %s: %v", ErrConnection, addr, err)
	}

	return &Channel{conn: conn, cfg: cfg}, nil
}

func clientTLSConfig(addr string, cfg Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: load client certificate: %v", ErrConfiguration, err)
	}

	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	serverName := strings.TrimSpace(cfg.ServerName)
	if serverName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: address %q: %v", ErrConfiguration, addr, err)
		}
		serverName = host
	}
	tlsCfg.ServerName = serverName

	if caPath := strings.TrimSpace(cfg.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read ca file: %v", ErrConfiguration, err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("%w: parse ca bundle %s", ErrConfiguration, caPath)
		}
		tlsCfg.RootCAs = pool
	}

	return tlsCfg, nil
}

// Write sends the full buffer. A short write or broken pipe surfaces as
// ErrConnection.
func (c *Channel) Write(b []byte) error {
	if err := c.conn.SetWriteDeadline(deadline(c.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("%w: set write deadline: %v", ErrConnection, err)
	}
	n, err := c.conn.Write(b)
	if err != nil {
		return fmt.Errorf("%w: write: %v", ErrConnection, err)
	}
	if n != len(b) {
		return fmt.Errorf("%w: short write: %d of %d bytes", ErrConnection, n, len(b))
	}
	return nil
}

// Read blocks for up to the read timeout and fills b with at most
// len(b) bytes. A zero count with io.EOF signals the peer closed the
// stream.
func (c *Channel) Read(b []byte) (int, error) {
	if err := c.conn.SetReadDeadline(deadline(c.cfg.ReadTimeout)); err != nil {
		return 0, fmt.Errorf("%w: set read deadline: %v", ErrConnection, err)
	}
	return c.conn.Read(b)
}

// Close releases the connection. Safe to call more than once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr reports the connected peer.
func (c *Channel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
