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

package postgres

import (
	"os"
	"testing"

	"github.com/blinklabs-io/ballot/database/models"
	"github.com/blinklabs-io/ballot/database/plugin/metadata/internal/gormstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	store := New(gormstore.ServerConfig{})
	assert.Equal(t, DefaultConfig, store.config)
	assert.Equal(
		t,
		"host=localhost port=5432 user=postgres dbname=ballot sslmode=disable TimeZone=UTC",
		store.dsn(),
	)
	// Closing a store that never started is a no-op
	require.NoError(t, store.Close())
}

func TestDSNFromConfig(t *testing.T) {
	store := New(gormstore.ServerConfig{
		Host:     "db.local",
		Port:     6543,
		User:     "voter",
		Password: "it's secret",
		Database: "ballot_test",
		SSLMode:  "require",
		TimeZone: "Europe/Paris",
	})
	assert.Equal(
		t,
		`host=db.local port=6543 user=voter dbname=ballot_test sslmode=require password='it\'s secret' TimeZone=Europe/Paris`,
		store.dsn(),
	)
	assert.Equal(t, uint64(100), store.config.MaxOpenConns)
}

func TestDSNOverridesConfig(t *testing.T) {
	store := New(gormstore.ServerConfig{
		Host: "ignored",
		DSN:  "  host=localhost dbname=ballot  ",
	})
	assert.Equal(t, "host=localhost dbname=ballot", store.dsn())
}

func TestQuoteDSNValue(t *testing.T) {
	assert.Equal(t, "plain", quoteDSNValue("plain"))
	assert.Equal(t, `'two words'`, quoteDSNValue("two words"))
	assert.Equal(t, `'back\\slash'`, quoteDSNValue(`back\slash`))
}

// TestIntegration runs against a real server when POSTGRES_DSN is set
func TestIntegration(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping postgres integration test: POSTGRES_DSN not set")
	}
	store := New(gormstore.ServerConfig{DSN: dsn})
	store.SetPromRegistry(prometheus.NewRegistry())
	require.NoError(t, store.Start())
	defer store.Close() //nolint:errcheck
	require.NoError(t, store.Reset(nil))

	txn := store.Transaction()
	require.NoError(t, store.SetProposal(
		&models.Proposal{
			Address:     "addr1",
			Creator:     "creator1",
			Description: "integration",
			Deposit:     10,
			RewardPool:  10,
			OnGoing:     true,
			AddedHeight: 1,
		},
		txn,
	))
	require.NoError(t, store.SetIndexHeight(1, txn))
	require.NoError(t, txn.Commit())

	proposal, err := store.GetProposal("addr1", nil)
	require.NoError(t, err)
	assert.Equal(t, "integration", proposal.Description)
	height, err := store.GetIndexHeight(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), height)
	require.NoError(t, store.Reset(nil))
}
