// File: client/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session configuration with defaults and YAML loading.

package client

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/docker/go-connections/tlsconfig"
	units "github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-wsc/api"
	core "github.com/momentics/hioload-wsc/core/protocol"
)

// TLSConfig selects certificates for wss:// endpoints.
type TLSConfig struct {
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// Config holds everything a Session and its NetTransport need.
type Config struct {
	URL         string            `yaml:"url"`
	Version     string            `yaml:"version"`
	SubProtocol string            `yaml:"sub_protocol"`
	Origin      string            `yaml:"origin"`
	UserAgent   string            `yaml:"user_agent"`
	Headers     map[string]string `yaml:"headers"`
	Cookies     map[string]string `yaml:"cookies"`

	ReceiveBufferSize int           `yaml:"receive_buffer_size"`
	AutoPing          bool          `yaml:"auto_ping"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	CloseTimeout      time.Duration `yaml:"close_timeout"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`

	NoDelay           bool      `yaml:"no_delay"`
	Proxy             string    `yaml:"proxy"`
	TLS               TLSConfig `yaml:"tls"`
	SocketReadBuffer  string    `yaml:"socket_read_buffer"`
	SocketWriteBuffer string    `yaml:"socket_write_buffer"`

	// MaxRetainedPayload bounds the payload bytes kept per frame, e.g. "25MiB".
	MaxRetainedPayload string `yaml:"max_retained_payload"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Version:            "auto",
		UserAgent:          "hioload-wsc",
		ReceiveBufferSize:  4096,
		AutoPing:           true,
		PingInterval:       60 * time.Second,
		CloseTimeout:       5 * time.Second,
		ConnectTimeout:     30 * time.Second,
		NoDelay:            true,
		MaxRetainedPayload: units.BytesSize(core.MaxRetainedPayload),
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks field values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.URL != "" {
		if _, err := c.ParsedURL(); err != nil {
			return err
		}
	}
	if _, err := api.ParseVersion(c.Version); err != nil {
		return err
	}
	if c.ReceiveBufferSize <= 0 {
		return fmt.Errorf("%w: receive_buffer_size must be positive", api.ErrInvalidArgument)
	}
	if c.AutoPing && c.PingInterval <= 0 {
		return fmt.Errorf("%w: ping_interval must be positive when auto_ping is on", api.ErrInvalidArgument)
	}
	for name, v := range map[string]string{
		"socket_read_buffer":   c.SocketReadBuffer,
		"socket_write_buffer":  c.SocketWriteBuffer,
		"max_retained_payload": c.MaxRetainedPayload,
	} {
		if _, err := parseSize(v); err != nil {
			return fmt.Errorf("%w: %s: %v", api.ErrInvalidArgument, name, err)
		}
	}
	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		if err != nil {
			return fmt.Errorf("%w: proxy: %v", api.ErrInvalidArgument, err)
		}
		if u.Scheme != "http" && u.Scheme != "socks5" {
			return fmt.Errorf("%w: proxy scheme %q", api.ErrInvalidArgument, u.Scheme)
		}
	}
	return nil
}

// ParsedURL parses URL and requires a ws or wss scheme.
func (c *Config) ParsedURL() (*url.URL, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: url: %v", api.ErrInvalidArgument, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: url scheme must be ws or wss, got %q", api.ErrInvalidArgument, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: url has no host", api.ErrInvalidArgument)
	}
	return u, nil
}

// HTTPHeader returns the extra handshake headers.
func (c *Config) HTTPHeader() http.Header {
	h := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}

// HTTPCookies returns the handshake cookies.
func (c *Config) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(c.Cookies))
	for k, v := range c.Cookies {
		out = append(out, &http.Cookie{Name: k, Value: v})
	}
	return out
}

// RetainLimit returns MaxRetainedPayload in bytes.
func (c *Config) RetainLimit() int64 {
	n, _ := parseSize(c.MaxRetainedPayload)
	if n <= 0 {
		return core.MaxRetainedPayload
	}
	return n
}

// SocketBuffers returns the socket buffer sizes in bytes; zero keeps the OS value.
func (c *Config) SocketBuffers() (read, write int) {
	r, _ := parseSize(c.SocketReadBuffer)
	w, _ := parseSize(c.SocketWriteBuffer)
	return int(r), int(w)
}

// TLSClientConfig builds the client TLS configuration for host.
func (c *Config) TLSClientConfig(host string) (*tls.Config, error) {
	cfg, err := tlsconfig.Client(tlsconfig.Options{
		CAFile:             c.TLS.CAFile,
		CertFile:           c.TLS.CertFile,
		KeyFile:            c.TLS.KeyFile,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}
	cfg.ServerName = host
	if c.TLS.ServerName != "" {
		cfg.ServerName = c.TLS.ServerName
	}
	return cfg, nil
}

func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return units.RAMInBytes(s)
}
