// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

type PluginType int

const (
	PluginTypeBlob     PluginType = 1
	PluginTypeMetadata PluginType = 2
)

// EnvPrefix is prepended to all plugin option environment variables
const EnvPrefix = "BALLOT_DATABASE"

func PluginTypeName(pluginType PluginType) string {
	switch pluginType {
	case PluginTypeBlob:
		return "blob"
	case PluginTypeMetadata:
		return "metadata"
	default:
		return ""
	}
}

type PluginEntry struct {
	Type               PluginType
	Name               string
	Description        string
	NewFromOptionsFunc func() Plugin
	Options            []PluginOption
}

// flagPrefix returns the prefix used for this plugin's cmdline flags, such
// as "blob-badger"
func (p PluginEntry) flagPrefix() string {
	return fmt.Sprintf("%s-%s", PluginTypeName(p.Type), p.Name)
}

// envPrefix returns the prefix used for this plugin's environment
// variables, such as "BALLOT_DATABASE_BLOB_BADGER"
func (p PluginEntry) envPrefix() string {
	return strings.ToUpper(
		strings.ReplaceAll(
			fmt.Sprintf("%s_%s_%s", EnvPrefix, PluginTypeName(p.Type), p.Name),
			"-",
			"_",
		),
	)
}

// NOTE: registration happens from package init() functions, so the registry
// is only mutated before main() runs
var pluginEntries []PluginEntry

// Register adds a plugin to the registry. A later entry with the same type
// and name replaces the earlier one.
func Register(pluginEntry PluginEntry) {
	for idx, entry := range pluginEntries {
		if entry.Type == pluginEntry.Type && entry.Name == pluginEntry.Name {
			pluginEntries[idx] = pluginEntry
			return
		}
	}
	pluginEntries = append(pluginEntries, pluginEntry)
}

// GetPlugins returns the registered plugins of the given type
func GetPlugins(pluginType PluginType) []PluginEntry {
	ret := []PluginEntry{}
	for _, plugin := range pluginEntries {
		if plugin.Type == pluginType {
			ret = append(ret, plugin)
		}
	}
	return ret
}

// GetPlugin creates a new instance of the named plugin from its current
// options. It returns nil when no such plugin is registered.
func GetPlugin(pluginType PluginType, name string) Plugin {
	for _, plugin := range pluginEntries {
		if plugin.Type != pluginType || plugin.Name != name {
			continue
		}
		if plugin.NewFromOptionsFunc == nil {
			return nil
		}
		return plugin.NewFromOptionsFunc()
	}
	return nil
}

// PopulateCmdlineOptions adds a flag for every option of every registered
// plugin to the provided flag set
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	for _, plugin := range pluginEntries {
		for _, option := range plugin.Options {
			if err := option.AddToFlagSet(fs, plugin.flagPrefix()); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessEnvVars applies plugin options from the environment
func ProcessEnvVars() error {
	for _, plugin := range pluginEntries {
		for _, option := range plugin.Options {
			if err := option.ProcessEnvVars(plugin.envPrefix()); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessConfig applies plugin options from a config file. The map is keyed
// by plugin type name, then plugin name, then option name.
func ProcessConfig(pluginConfig map[string]map[string]map[string]any) error {
	for pluginType, pluginTypeData := range pluginConfig {
		for pluginName, pluginData := range pluginTypeData {
			found := false
			for _, plugin := range pluginEntries {
				if PluginTypeName(plugin.Type) != pluginType ||
					plugin.Name != pluginName {
					continue
				}
				found = true
				for _, option := range plugin.Options {
					optionData, ok := pluginData[option.Name]
					if !ok {
						continue
					}
					if err := option.ProcessConfig(optionData); err != nil {
						return fmt.Errorf(
							"%s plugin '%s': %w",
							pluginType,
							pluginName,
							err,
						)
					}
				}
			}
			if !found {
				return fmt.Errorf(
					"unknown %s plugin '%s' in config",
					pluginType,
					pluginName,
				)
			}
		}
	}
	return nil
}
