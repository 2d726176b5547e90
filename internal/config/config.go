// Package config persists bridge settings in a JSON file next to the
// binary. On first run it also picks a free listen port and writes it back,
// so operators get a stable port without hand-editing anything.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/jensen-user/rew-bridge/internal/logging"
)

// portScanRange is how many consecutive ports the first-run scan tries
// before falling back to the starting port.
const portScanRange = 100

// Config holds the persisted bridge settings.
type Config struct {
	// REWPath overrides the platform-conventional REW install locations.
	REWPath string `json:"rew_path"`

	// BridgePort is the bridge's own HTTP listen port.
	BridgePort int `json:"bridge_port"`

	// REWAPIPort is where REW's local API listens.
	REWAPIPort int `json:"rew_api_port"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// MDNS controls whether the bridge advertises its API over mDNS.
	MDNS bool `json:"mdns"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		BridgePort: 8080,
		REWAPIPort: 4735,
		LogLevel:   "info",
		LogFormat:  "text",
		MDNS:       true,
	}
}

// LoadOrCreate reads the config file, creating it with defaults (and a
// freshly scanned free bridge port) when absent. Values missing from an
// existing file keep their defaults, and a file that fails to parse is
// warned about and ignored rather than keeping the bridge down — the
// operator's broken edit should not cost them the API. Reports whether
// the file was created.
func LoadOrCreate(path string) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, false, fmt.Errorf("read config: %w", err)
		}
		cfg := Default()
		cfg.BridgePort = FindFreePort(cfg.BridgePort)
		if err := Save(path, cfg); err != nil {
			return Config{}, false, err
		}
		return cfg, true, nil
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		logging.Default().Warn("malformed config, using defaults",
			logging.Field{Key: "path", Value: path},
			logging.Field{Key: "error", Value: err})
		return Default(), false, nil
	}
	return cfg, false, nil
}

// Save writes the config as indented JSON.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// FindFreePort scans for a bindable TCP port starting at start, falling back
// to start itself when the whole range is occupied.
func FindFreePort(start int) int {
	for port := start; port < start+portScanRange; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			continue
		}
		ln.Close()
		return port
	}
	return start
}
