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

package mysql

import (
	"sync"

	"github.com/blinklabs-io/ballot/database/plugin"
	"github.com/blinklabs-io/ballot/database/plugin/metadata/internal/gormstore"
)

// DefaultConfig holds the connection settings used for unset options
var DefaultConfig = gormstore.ServerConfig{
	Host:         "localhost",
	Port:         3306,
	User:         "root",
	Database:     "ballot",
	TimeZone:     "UTC",
	MaxOpenConns: 100,
}

var (
	cmdlineOptions      = DefaultConfig
	cmdlineOptionsMutex sync.RWMutex
)

// Register plugin
func init() {
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeMetadata,
			Name:               "mysql",
			Description:        "MySQL relational database",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: gormstore.PluginOptions(
				"MySQL",
				DefaultConfig,
				&cmdlineOptions,
			),
		},
	)
}

func NewFromCmdlineOptions() plugin.Plugin {
	cmdlineOptionsMutex.RLock()
	cfg := cmdlineOptions
	cmdlineOptionsMutex.RUnlock()
	return New(cfg)
}
