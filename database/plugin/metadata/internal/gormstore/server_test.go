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
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDefaults = ServerConfig{
	Host:         "localhost",
	Port:         5432,
	User:         "postgres",
	Database:     "ballot",
	SSLMode:      "disable",
	TimeZone:     "UTC",
	MaxOpenConns: 100,
}

func TestServerConfigWithDefaults(t *testing.T) {
	cfg := ServerConfig{Host: "db.local", Password: "secret"}.WithDefaults(testDefaults)
	assert.Equal(t, "db.local", cfg.Host)
	assert.Equal(t, uint64(5432), cfg.Port)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "ballot", cfg.Database)
	assert.Empty(t, cfg.DSN)
}

func TestServerConfigPool(t *testing.T) {
	pool := ServerConfig{MaxOpenConns: 4}.Pool("postgres")
	assert.Equal(t, "postgres", pool.Engine)
	assert.Equal(t, 4, pool.MaxOpenConns)
	assert.Equal(t, 4, pool.MaxIdleConns)
	assert.Equal(t, time.Hour, pool.ConnMaxLifetime)
	assert.True(t, pool.PrepareStmt)

	pool = testDefaults.Pool("postgres")
	assert.Equal(t, 10, pool.MaxIdleConns)
}

func TestPluginOptionsBindFlags(t *testing.T) {
	dest := testDefaults
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	for _, opt := range PluginOptions("Postgres", testDefaults, &dest) {
		require.NoError(t, opt.AddToFlagSet(fs, "metadata-postgres"))
	}
	require.NoError(t, fs.Parse([]string{
		"--metadata-postgres-host", "db.local",
		"--metadata-postgres-port", "6543",
		"--metadata-postgres-max-open-conns", "8",
	}))
	assert.Equal(t, "db.local", dest.Host)
	assert.Equal(t, uint64(6543), dest.Port)
	assert.Equal(t, uint64(8), dest.MaxOpenConns)
	assert.Equal(t, "postgres", dest.User)

	flag := fs.Lookup("metadata-postgres-password")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}
