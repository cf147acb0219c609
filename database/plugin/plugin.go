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
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

type Plugin interface {
	Start() error
	Stop() error
}

// ErrorPlugin is a plugin that always returns an error on Start()
type ErrorPlugin struct {
	Err error
}

func (e *ErrorPlugin) Start() error {
	return e.Err
}

func (e *ErrorPlugin) Stop() error {
	return nil
}

// NewErrorPlugin creates a new error plugin that returns the given error on Start()
func NewErrorPlugin(err error) Plugin {
	return &ErrorPlugin{Err: err}
}

// Instrumentable is implemented by plugins that accept a logger and metrics
// registry before Start()
type Instrumentable interface {
	SetLogger(*slog.Logger)
	SetPromRegistry(prometheus.Registerer)
}

// StartPlugin gets a plugin from the registry and starts it. The logger and
// registry are handed to plugins implementing Instrumentable and may be nil.
func StartPlugin(
	pluginType PluginType,
	pluginName string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (Plugin, error) {
	p := GetPlugin(pluginType, pluginName)
	if p == nil {
		return nil, fmt.Errorf(
			"%s plugin '%s' not found",
			PluginTypeName(pluginType),
			pluginName,
		)
	}
	if inst, ok := p.(Instrumentable); ok {
		if logger != nil {
			inst.SetLogger(logger)
		}
		if promRegistry != nil {
			inst.SetPromRegistry(promRegistry)
		}
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf(
			"failed to start %s plugin '%s': %w",
			PluginTypeName(pluginType),
			pluginName,
			err,
		)
	}
	return p, nil
}

// SetPluginOption sets the value of a named option for a plugin entry, for
// callers that override plugin defaults programmatically (such as the data
// directory). Unknown options are ignored, since not every implementation
// has every option.
// NOTE: this writes to the option destinations without locking, so it must
// only be called before the plugin is instantiated
func SetPluginOption(
	pluginType PluginType,
	pluginName string,
	optionName string,
	value any,
) error {
	for i := range pluginEntries {
		p := &pluginEntries[i]
		if p.Type != pluginType || p.Name != pluginName {
			continue
		}
		for j := range p.Options {
			if p.Options[j].Name != optionName {
				continue
			}
			return p.Options[j].setValue(value)
		}
		return nil
	}
	return fmt.Errorf(
		"plugin %s of type %s not found",
		pluginName,
		PluginTypeName(pluginType),
	)
}
