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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = 1
	PluginOptionTypeBool   PluginOptionType = 2
	PluginOptionTypeInt    PluginOptionType = 3
	PluginOptionTypeUint   PluginOptionType = 4
)

type PluginOption struct {
	DefaultValue any
	Dest         any
	Name         string
	Description  string
	Type         PluginOptionType
}

func (p *PluginOption) AddToFlagSet(fs *pflag.FlagSet, prefix string) error {
	flagName := prefix + "-" + p.Name
	switch p.Type {
	case PluginOptionTypeString:
		dest, defaultValue, err := optionDestDefault[string](p)
		if err != nil {
			return err
		}
		fs.StringVar(dest, flagName, defaultValue, p.Description)
	case PluginOptionTypeBool:
		dest, defaultValue, err := optionDestDefault[bool](p)
		if err != nil {
			return err
		}
		fs.BoolVar(dest, flagName, defaultValue, p.Description)
	case PluginOptionTypeInt:
		dest, defaultValue, err := optionDestDefault[int](p)
		if err != nil {
			return err
		}
		fs.IntVar(dest, flagName, defaultValue, p.Description)
	case PluginOptionTypeUint:
		dest, defaultValue, err := optionDestDefault[uint64](p)
		if err != nil {
			return err
		}
		fs.Uint64Var(dest, flagName, defaultValue, p.Description)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, p.Name)
	}
	return nil
}

// ProcessEnvVars sets the option from its environment variable, if present
func (p *PluginOption) ProcessEnvVars(envPrefix string) error {
	envVarName := envPrefix + "_" + strings.ToUpper(
		strings.ReplaceAll(p.Name, "-", "_"),
	)
	value, ok := os.LookupEnv(envVarName)
	if !ok {
		return nil
	}
	switch p.Type {
	case PluginOptionTypeString:
		return p.setValue(value)
	case PluginOptionTypeBool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("error processing env var %s: %w", envVarName, err)
		}
		return p.setValue(v)
	case PluginOptionTypeInt:
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("error processing env var %s: %w", envVarName, err)
		}
		return p.setValue(v)
	case PluginOptionTypeUint:
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("error processing env var %s: %w", envVarName, err)
		}
		return p.setValue(v)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, p.Name)
	}
}

// ProcessConfig sets the option from a decoded config file value
func (p *PluginOption) ProcessConfig(value any) error {
	// YAML decodes numbers as int, so convert to the option's native type
	if tmpVal, ok := value.(int); ok && p.Type == PluginOptionTypeUint {
		if tmpVal < 0 {
			return fmt.Errorf("invalid value for option %s: negative int", p.Name)
		}
		value = uint64(tmpVal)
	}
	if err := p.setValue(value); err != nil {
		return fmt.Errorf("error processing config for option %s: %w", p.Name, err)
	}
	return nil
}

// setValue performs a type-checked assignment into the option destination
func (p *PluginOption) setValue(value any) error {
	switch p.Type {
	case PluginOptionTypeString:
		return assignOption[string](p, value)
	case PluginOptionTypeBool:
		return assignOption[bool](p, value)
	case PluginOptionTypeInt:
		return assignOption[int](p, value)
	case PluginOptionTypeUint:
		if tmpVal, ok := value.(int); ok {
			if tmpVal < 0 {
				return fmt.Errorf("invalid value for option %s: negative int", p.Name)
			}
			value = uint64(tmpVal)
		}
		return assignOption[uint64](p, value)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, p.Name)
	}
}

func assignOption[T any](p *PluginOption, value any) error {
	v, ok := value.(T)
	if !ok {
		return fmt.Errorf(
			"invalid type for option %s: expected %T, got %T",
			p.Name,
			*new(T),
			value,
		)
	}
	dest, ok := p.Dest.(*T)
	if !ok {
		return fmt.Errorf(
			"invalid destination type for option %s: expected %T",
			p.Name,
			new(T),
		)
	}
	if dest == nil {
		return fmt.Errorf("nil destination pointer for option %s", p.Name)
	}
	*dest = v
	return nil
}

func optionDestDefault[T any](p *PluginOption) (*T, T, error) {
	var zero T
	dest, ok := p.Dest.(*T)
	if !ok || dest == nil {
		return nil, zero, fmt.Errorf(
			"invalid destination for option %s: expected %T",
			p.Name,
			new(T),
		)
	}
	if p.DefaultValue == nil {
		return dest, zero, nil
	}
	defaultValue, ok := p.DefaultValue.(T)
	if !ok {
		return nil, zero, errors.New(
			"invalid default value type for option " + p.Name,
		)
	}
	return dest, defaultValue, nil
}
