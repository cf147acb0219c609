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

package gormstore

import (
	"time"

	"github.com/blinklabs-io/ballot/database/plugin"
)

// ServerConfig holds the connection settings of a metadata backend that
// talks to a database server
type ServerConfig struct {
	Host     string
	Port     uint64
	User     string
	Password string
	Database string
	// SSLMode maps to sslmode on postgres and the tls parameter on mysql
	SSLMode  string
	TimeZone string
	// DSN overrides every other connection setting when set
	DSN          string
	MaxOpenConns uint64
}

// WithDefaults returns c with empty fields taken from defaults. Password and
// DSN have no defaults.
func (c ServerConfig) WithDefaults(defaults ServerConfig) ServerConfig {
	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.User == "" {
		c.User = defaults.User
	}
	if c.Database == "" {
		c.Database = defaults.Database
	}
	if c.SSLMode == "" {
		c.SSLMode = defaults.SSLMode
	}
	if c.TimeZone == "" {
		c.TimeZone = defaults.TimeZone
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = defaults.MaxOpenConns
	}
	return c
}

// Pool returns the pool settings for the server backend named engine
func (c ServerConfig) Pool(engine string) PoolConfig {
	return PoolConfig{
		Engine:          engine,
		MaxOpenConns:    int(c.MaxOpenConns),          // #nosec G115
		MaxIdleConns:    int(min(c.MaxOpenConns, 10)), // #nosec G115
		ConnMaxLifetime: time.Hour,
		PrepareStmt:     true,
	}
}

// PluginOptions returns the plugin options of a server backend. Each option
// writes to the matching field of dest and defaults to the matching field of
// defaults.
func PluginOptions(
	engine string,
	defaults ServerConfig,
	dest *ServerConfig,
) []plugin.PluginOption {
	return []plugin.PluginOption{
		{
			Name:         "host",
			Type:         plugin.PluginOptionTypeString,
			Description:  engine + " host",
			DefaultValue: defaults.Host,
			Dest:         &dest.Host,
		},
		{
			Name:         "port",
			Type:         plugin.PluginOptionTypeUint,
			Description:  engine + " port",
			DefaultValue: defaults.Port,
			Dest:         &dest.Port,
		},
		{
			Name:         "user",
			Type:         plugin.PluginOptionTypeString,
			Description:  engine + " user",
			DefaultValue: defaults.User,
			Dest:         &dest.User,
		},
		{
			Name:         "password",
			Type:         plugin.PluginOptionTypeString,
			Description:  engine + " password",
			DefaultValue: "",
			Dest:         &dest.Password,
		},
		{
			Name:         "database",
			Type:         plugin.PluginOptionTypeString,
			Description:  engine + " database name",
			DefaultValue: defaults.Database,
			Dest:         &dest.Database,
		},
		{
			Name:         "ssl-mode",
			Type:         plugin.PluginOptionTypeString,
			Description:  engine + " TLS mode",
			DefaultValue: defaults.SSLMode,
			Dest:         &dest.SSLMode,
		},
		{
			Name:         "timezone",
			Type:         plugin.PluginOptionTypeString,
			Description:  engine + " session time zone",
			DefaultValue: defaults.TimeZone,
			Dest:         &dest.TimeZone,
		},
		{
			Name:         "dsn",
			Type:         plugin.PluginOptionTypeString,
			Description:  "full " + engine + " DSN (overrides other connection options when set)",
			DefaultValue: "",
			Dest:         &dest.DSN,
		},
		{
			Name:         "max-open-conns",
			Type:         plugin.PluginOptionTypeUint,
			Description:  "maximum open " + engine + " connections",
			DefaultValue: defaults.MaxOpenConns,
			Dest:         &dest.MaxOpenConns,
		},
	}
}
