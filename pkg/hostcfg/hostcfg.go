// Package hostcfg holds the host-facing configuration the router and
// server are built from. Files may be TOML or YAML (picked by
// extension); everything is normalized and validated at load time so a
// bad config never reaches request handling.
package hostcfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ggpwnkthx/azfunc-go/pkg/protocol"
)

const (
	DefaultListen      = ":8080"
	DefaultRoutePrefix = "api"
)

type Config struct {
	// Listen is the address the invocation server binds. When empty and
	// FUNCTIONS_CUSTOMHANDLER_PORT is set, that port wins: it is how the
	// host tells a custom handler where to listen.
	Listen string `toml:"listen" yaml:"listen"`

	// RoutePrefix is stripped from inbound paths before the function
	// name segment is extracted.
	RoutePrefix string `toml:"route_prefix" yaml:"route_prefix"`

	// MaxEnvelopeBytes caps the inbound invocation envelope.
	MaxEnvelopeBytes int64 `toml:"max_envelope_bytes" yaml:"max_envelope_bytes"`

	// MaxResponseBytes caps a structured HTTP response body on encode.
	MaxResponseBytes int64 `toml:"max_response_bytes" yaml:"max_response_bytes"`

	// TemplateRoutes additionally mounts HTTP triggers that declare a
	// route template under /{prefix}/<template>.
	TemplateRoutes bool `toml:"template_routes" yaml:"template_routes"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Listen:           DefaultListen,
		RoutePrefix:      DefaultRoutePrefix,
		MaxEnvelopeBytes: protocol.DefaultMaxEnvelopeBytes,
		MaxResponseBytes: protocol.DefaultMaxResponseBytes,
	}
}

// Normalize fills defaults and rejects unusable values.
func (c *Config) Normalize() error {
	if strings.TrimSpace(c.Listen) == "" {
		if port := strings.TrimSpace(os.Getenv("FUNCTIONS_CUSTOMHANDLER_PORT")); port != "" {
			c.Listen = ":" + port
		} else {
			c.Listen = DefaultListen
		}
	}
	c.RoutePrefix = strings.Trim(strings.TrimSpace(c.RoutePrefix), "/")
	if c.RoutePrefix == "" {
		c.RoutePrefix = DefaultRoutePrefix
	}
	if c.MaxEnvelopeBytes == 0 {
		c.MaxEnvelopeBytes = protocol.DefaultMaxEnvelopeBytes
	}
	if c.MaxResponseBytes == 0 {
		c.MaxResponseBytes = protocol.DefaultMaxResponseBytes
	}
	if c.MaxEnvelopeBytes < 0 {
		return fmt.Errorf("max_envelope_bytes must be >= 0")
	}
	if c.MaxResponseBytes < 0 {
		return fmt.Errorf("max_response_bytes must be >= 0")
	}
	return nil
}

// Load reads, decodes, and normalizes a config file.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	if err := cfg.Normalize(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
