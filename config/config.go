// Package config loads the service configuration from a yaml or json
// file with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/voltmesh/cso/core/dispatch"
	"github.com/voltmesh/cso/core/flush"
	"github.com/voltmesh/cso/core/hierarchy"
	"github.com/voltmesh/cso/core/metrics"
	"github.com/voltmesh/cso/infra/mqtt"
)

type Config struct {
	MQTT      mqtt.Config      `json:"mqtt"`
	Dispatch  dispatch.Config  `json:"dispatch"`
	Flush     flush.Config     `json:"flush"`
	Metrics   metrics.Config   `json:"metrics"`
	Hierarchy hierarchy.Config `json:"hierarchy"`
	Topology  TopologyConfig   `json:"topology"`
}

// Load reads the configuration file at path. Environment variables
// prefixed with CSO_ override file values, with __ separating nesting
// levels (CSO_MQTT__BROKER overrides mqtt.broker).
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("CSO_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "cso_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.MQTT.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Flush.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Hierarchy.SetDefaults()
	cfg.Topology.SetDefaults()
	if err := cfg.Topology.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
