package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyDiscord = "discord"
	keyCleanup = "cleanup"
	keyLogging = "logging"
	keyHistory = "history"
	keyMetrics = "metrics"
)

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto the
// target Config. Each section present in the file is decoded over the
// target's current values, so keys missing from a section keep their
// defaults. Unknown top-level keys are ignored.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", overlayPath, err)
	}

	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing config YAML from %s: %w", overlayPath, err)
	}

	for key, node := range overlay {
		if err = decodeSection(target, key, &node); err != nil {
			return fmt.Errorf("applying config section %q: %w", key, err)
		}
	}

	return nil
}

func decodeSection(target *Config, key string, node *yaml.Node) error {
	switch key {
	case keyDiscord:
		return node.Decode(&target.Discord)
	case keyCleanup:
		return node.Decode(&target.Cleanup)
	case keyLogging:
		return node.Decode(&target.Logging)
	case keyHistory:
		return node.Decode(&target.History)
	case keyMetrics:
		return node.Decode(&target.Metrics)
	default:
		return nil
	}
}

// Save writes cfg to path as YAML, creating parent directories. The token is
// never written; use token_file or GUILDSWEEP_TOKEN instead.
func Save(cfg *Config, path string) error {
	out := *cfg
	out.Discord.Token = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err = ensureParentDir(path); err != nil {
		return err
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}
