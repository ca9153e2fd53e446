package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/acclab/go-sdl-utils/transfer"
)

// fileConfig is the TOML configuration accepted with --config. Flags override
// the file; unset fields keep the transfer package defaults.
//
// Example:
//
//	host = "10.0.0.5"
//	port = 7010
//	dest_dir = "/data/incoming"
//
//	[timeouts]
//	connect = "10s"
//	accept  = "30s"
//	read    = "30s"
//	write   = "30s"
//
//	[limits]
//	max_name_len     = 255
//	max_content_size = 1073741824
type fileConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	DestDir string `toml:"dest_dir"`

	Timeouts struct {
		Connect string `toml:"connect"`
		Accept  string `toml:"accept"`
		Read    string `toml:"read"`
		Write   string `toml:"write"`
	} `toml:"timeouts"`

	Limits struct {
		MaxNameLen     uint32 `toml:"max_name_len"`
		MaxContentSize uint32 `toml:"max_content_size"`
	} `toml:"limits"`
}

// loadFileConfig parses the TOML file at path. An empty path yields an empty
// configuration.
func loadFileConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}

	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// connOptions converts the file configuration into transfer options.
func (cfg *fileConfig) connOptions() ([]transfer.ConnOption, error) {
	var opts []transfer.ConnOption

	durations := []struct {
		value string
		opt   func(time.Duration) transfer.ConnOption
	}{
		{cfg.Timeouts.Connect, transfer.WithConnectTimeout},
		{cfg.Timeouts.Accept, transfer.WithAcceptTimeout},
		{cfg.Timeouts.Read, transfer.WithReadTimeout},
		{cfg.Timeouts.Write, transfer.WithWriteTimeout},
	}

	for _, d := range durations {
		if d.value == "" {
			continue
		}

		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("parse timeout %q: %w", d.value, err)
		}
		opts = append(opts, d.opt(parsed))
	}

	if cfg.Limits.MaxNameLen > 0 {
		opts = append(opts, transfer.WithMaxNameLen(cfg.Limits.MaxNameLen))
	}
	if cfg.Limits.MaxContentSize > 0 {
		opts = append(opts, transfer.WithMaxContentSize(cfg.Limits.MaxContentSize))
	}

	return opts, nil
}

// resolveEndpoint merges flag and file values; flags win.
func resolveEndpoint(cfg *fileConfig) (host string, port int, err error) {
	host = cfg.Host
	if flagHost != "" {
		host = flagHost
	}

	port = cfg.Port
	if flagPort != 0 {
		port = flagPort
	}

	if port == 0 {
		return "", 0, fmt.Errorf("no port configured; pass --port or set it in the config file")
	}

	return host, port, nil
}
