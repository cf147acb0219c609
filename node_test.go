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

package ballot_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blinklabs-io/ballot"
	"github.com/blinklabs-io/ballot/internal/test/testutil"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startNode(
	t *testing.T,
	opts ...ballot.ConfigOptionFunc,
) (*ballot.Node, context.CancelFunc, <-chan error) {
	t.Helper()
	opts = append(
		[]ballot.ConfigOptionFunc{ballot.WithLogger(testutil.NewLogger(t))},
		opts...,
	)
	n, err := ballot.New(ballot.NewConfig(opts...))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Run(ctx)
	}()
	select {
	case <-n.Ready():
	case err := <-errCh:
		cancel()
		t.Fatalf("node failed to start: %s", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("timed out waiting for node to start")
	}
	return n, cancel, errCh
}

func stopNode(
	t *testing.T,
	n *ballot.Node,
	cancel context.CancelFunc,
	errCh <-chan error,
) {
	t.Helper()
	cancel()
	require.NoError(t, <-errCh)
	require.NoError(t, n.Stop())
	// Stop is idempotent
	require.NoError(t, n.Stop())
}

func TestNodeServesAPI(t *testing.T) {
	n, cancel, errCh := startNode(
		t,
		ballot.WithRunMode("dev"),
		ballot.WithAPIListenAddress("127.0.0.1:0"),
		ballot.WithRateLimit(-1, 0),
	)
	require.NotNil(t, n.API())

	creator := solana.NewWallet().PublicKey()
	_, err := n.Ledger().Airdrop(context.Background(), creator, 10)
	require.NoError(t, err)
	p, err := n.Ledger().CreateProposal(context.Background(), creator, "Served", 10)
	require.NoError(t, err)

	req := httptest.NewRequest(
		http.MethodGet,
		"/api/v0/proposals/"+p.Address.String(),
		nil,
	)
	recorder := httptest.NewRecorder()
	n.API().Handler().ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)

	stopNode(t, n, cancel, errCh)
}

func TestNodeWithoutDevModeRejectsAirdrop(t *testing.T) {
	n, cancel, errCh := startNode(t)
	assert.Nil(t, n.API())
	_, err := n.Ledger().Airdrop(
		context.Background(),
		solana.NewWallet().PublicKey(),
		10,
	)
	require.ErrorIs(t, err, ledger.ErrAirdropDisabled)
	stopNode(t, n, cancel, errCh)
}

func TestNodePersistenceAndReindex(t *testing.T) {
	dataDir := t.TempDir()
	creator := solana.NewWallet().PublicKey()

	n, cancel, errCh := startNode(
		t,
		ballot.WithRunMode("dev"),
		ballot.WithDatabasePath(dataDir),
	)
	_, err := n.Ledger().Airdrop(context.Background(), creator, 10)
	require.NoError(t, err)
	p, err := n.Ledger().CreateProposal(context.Background(), creator, "Persisted", 4)
	require.NoError(t, err)
	stopNode(t, n, cancel, errCh)

	reindexer, err := ballot.New(ballot.NewConfig(ballot.WithDatabasePath(dataDir)))
	require.NoError(t, err)
	require.NoError(t, reindexer.Reindex())

	n, cancel, errCh = startNode(t, ballot.WithDatabasePath(dataDir))
	loaded, err := n.Ledger().Proposal(p.Address)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", loaded.Description)
	assert.Equal(t, uint64(4), loaded.RewardPool)
	balance, err := n.Ledger().Balance(creator)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), balance)
	height, err := n.Ledger().Height()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), height)
	stopNode(t, n, cancel, errCh)
}
