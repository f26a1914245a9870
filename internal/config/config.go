// Package config assembles the route configuration from defaults, the
// environment (optionally seeded from a .env file), a JSON file and flags.
package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Environment variables read by FromEnv.
const (
	EnvSourceName = "MIDIROUTE_SOURCE_NAME"
	EnvTargetName = "MIDIROUTE_TARGET_NAME"
	EnvVirtual    = "MIDIROUTE_VIRTUAL_TARGET"
	EnvVerbose    = "MIDIROUTE_VERBOSE"
)

// Config names the two ends of a route. VirtualTarget, when set, replaces
// TargetName with a port published by the router itself.
type Config struct {
	SourceName    string `json:"source_name"`
	TargetName    string `json:"target_name,omitempty"`
	VirtualTarget string `json:"virtual_target,omitempty"`
	Verbose       bool   `json:"verbose,omitempty"`
}

// LoadDotEnv loads the first readable file among paths into the process
// environment. Variables already set are not overridden. It returns the path
// that was loaded, or "" when none was found.
func LoadDotEnv(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("failed to load env file", "path", p, "err", err)
			continue
		}
		return p
	}
	return ""
}

// FromEnv overlays the MIDIROUTE_* variables found through lookup onto c.
func (c *Config) FromEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvSourceName); ok && v != "" {
		c.SourceName = v
	}
	if v, ok := lookup(EnvTargetName); ok && v != "" {
		c.TargetName = v
	}
	if v, ok := lookup(EnvVirtual); ok && v != "" {
		c.VirtualTarget = v
	}
	if v, ok := lookup(EnvVerbose); ok && v != "" {
		verbose, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvVerbose)
		}
		c.Verbose = verbose
	}
	return nil
}

// Merge overlays the non-zero fields of other onto c. A target named by
// other replaces both target fields of c, so a later layer can switch
// between a port and a virtual port.
func (c *Config) Merge(other *Config) {
	if other.SourceName != "" {
		c.SourceName = other.SourceName
	}
	if other.TargetName != "" || other.VirtualTarget != "" {
		c.TargetName = other.TargetName
		c.VirtualTarget = other.VirtualTarget
	}
	if other.Verbose {
		c.Verbose = true
	}
}

// Validate checks that both ends of the route are named.
func (c *Config) Validate() error {
	if c.SourceName == "" {
		return errors.New("no source port name given (--source-name)")
	}
	switch {
	case c.TargetName == "" && c.VirtualTarget == "":
		return errors.New("no target port name given (--target-name or --virtual-target)")
	case c.TargetName != "" && c.VirtualTarget != "":
		return errors.New("--target-name and --virtual-target are mutually exclusive")
	}
	return nil
}

// Load reads a JSON config file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// Save writes c as indented JSON to filename.
func Save(c *Config, filename string) error {
	data, err := marshal(c)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// Write prints c as indented JSON to w.
func Write(w io.Writer, c *Config) error {
	data, err := marshal(c)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshal(c *Config) ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	return append(data, '\n'), nil
}
