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

package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blinklabs-io/ballot/address"
	"github.com/blinklabs-io/ballot/api"
	"github.com/blinklabs-io/ballot/database"
	"github.com/blinklabs-io/ballot/event"
	"github.com/blinklabs-io/ballot/indexer"
	"github.com/blinklabs-io/ballot/internal/test/testutil"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	api      *api.API
	db       *database.Database
	ledger   *ledger.Ledger
	eventBus *event.EventBus
	registry *prometheus.Registry
}

func setupTestEnv(t *testing.T, devMode bool) *testEnv {
	t.Helper()
	return setupTestEnvWithLedger(t, ledger.LedgerConfig{DevMode: devMode})
}

// setupTestEnvWithLedger wires the database and event bus into ledgerCfg
func setupTestEnvWithLedger(t *testing.T, ledgerCfg ledger.LedgerConfig) *testEnv {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	eventBus := event.NewEventBus(nil, nil)
	t.Cleanup(func() {
		eventBus.Stop()
		db.Close() //nolint:errcheck
	})
	ledgerCfg.Database = db
	ledgerCfg.EventBus = eventBus
	l, err := ledger.New(ledgerCfg)
	require.NoError(t, err)
	idx, err := indexer.New(indexer.IndexerConfig{
		Database: db,
		Ledger:   l,
		EventBus: eventBus,
	})
	require.NoError(t, err)
	require.NoError(t, idx.Start())
	t.Cleanup(idx.Stop)
	registry := prometheus.NewRegistry()
	a := api.New(
		api.APIConfig{
			PromRegistry: registry,
			RateLimit:    -1,
		},
		l,
		db,
		eventBus,
		nil,
	)
	return &testEnv{
		api:      a,
		db:       db,
		ledger:   l,
		eventBus: eventBus,
		registry: registry,
	}
}

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key solana.PrivateKey, payload []byte) string {
	t.Helper()
	sig, err := key.Sign(payload)
	require.NoError(t, err)
	return sig.String()
}

func (e *testEnv) do(
	t *testing.T,
	method string,
	path string,
	body any,
) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reqBody)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(recorder, req)
	return recorder
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var ret T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &ret))
	return ret
}

func (e *testEnv) waitIndexed(t *testing.T) {
	t.Helper()
	ledgerHeight, err := e.ledger.Height()
	require.NoError(t, err)
	testutil.WaitForHeight(t, ledgerHeight, func() (uint64, error) {
		return e.db.IndexHeight(nil)
	})
}

func (e *testEnv) fund(t *testing.T, account solana.PublicKey, amount uint64) {
	t.Helper()
	_, err := e.ledger.Airdrop(context.Background(), account, amount)
	require.NoError(t, err)
}

func (e *testEnv) createProposal(
	t *testing.T,
	creator solana.PrivateKey,
	description string,
	deposit uint64,
) api.ProposalResponse {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v0/proposals", api.CreateProposalRequest{
		Creator:     creator.PublicKey().String(),
		Description: description,
		Deposit:     deposit,
		Signature: sign(
			t,
			creator,
			api.CreateProposalPayload(address.DefaultProgramID, creator.PublicKey(), description, deposit),
		),
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	ret := decode[api.ProposalResponse](t, resp)
	assert.Equal(t, "/api/v0/proposals/"+ret.Address, resp.Header().Get("Location"))
	return ret
}

func (e *testEnv) vote(
	t *testing.T,
	proposal string,
	voter solana.PrivateKey,
	choice bool,
) *httptest.ResponseRecorder {
	t.Helper()
	proposalAddr := solana.MustPublicKeyFromBase58(proposal)
	return e.do(t, http.MethodPost, "/api/v0/proposals/"+proposal+"/votes", api.VoteRequest{
		Voter: voter.PublicKey().String(),
		Vote:  choice,
		Signature: sign(
			t,
			voter,
			api.VotePayload(address.DefaultProgramID, proposalAddr, voter.PublicKey(), choice),
		),
	})
}

func (e *testEnv) finalize(
	t *testing.T,
	proposal string,
	creator solana.PrivateKey,
	voters []solana.PublicKey,
) *httptest.ResponseRecorder {
	t.Helper()
	proposalAddr := solana.MustPublicKeyFromBase58(proposal)
	tmpVoters := make([]string, 0, len(voters))
	for _, voter := range voters {
		tmpVoters = append(tmpVoters, voter.String())
	}
	return e.do(t, http.MethodPost, "/api/v0/proposals/"+proposal+"/finalize", api.FinalizeRequest{
		Creator: creator.PublicKey().String(),
		Voters:  tmpVoters,
		Signature: sign(
			t,
			creator,
			api.FinalizePayload(address.DefaultProgramID, proposalAddr, creator.PublicKey(), voters),
		),
	})
}

func TestRootAndHealth(t *testing.T) {
	env := setupTestEnv(t, true)

	resp := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	root := decode[api.RootResponse](t, resp)
	assert.Equal(t, "ballot", root.Name)
	assert.NotEmpty(t, root.Version)

	resp = env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	health := decode[api.HealthResponse](t, resp)
	assert.True(t, health.IsHealthy)
	assert.Zero(t, health.LedgerHeight)

	resp = env.do(t, http.MethodGet, "/api/v0/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestProposalLifecycle(t *testing.T) {
	env := setupTestEnv(t, true)
	creator := newKey(t)
	voters := []solana.PrivateKey{newKey(t), newKey(t), newKey(t)}
	env.fund(t, creator.PublicKey(), 1000)

	p := env.createProposal(t, creator, "Fund the bridge", 100)
	assert.True(t, p.OnGoing)
	assert.Equal(t, uint64(100), p.RewardPool)
	assert.Nil(t, p.Result)
	assert.Nil(t, p.VotesForPercentage)

	for i, voter := range voters {
		resp := env.vote(t, p.Address, voter, i != 2)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}

	voterKeys := make([]solana.PublicKey, 0, len(voters))
	for _, voter := range voters {
		voterKeys = append(voterKeys, voter.PublicKey())
	}
	resp := env.finalize(t, p.Address, creator, voterKeys)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	final := decode[api.ProposalResponse](t, resp)
	assert.False(t, final.OnGoing)
	require.NotNil(t, final.Result)
	assert.Equal(t, "For", *final.Result)
	require.NotNil(t, final.VotesForPercentage)
	assert.InDelta(t, 66.666, *final.VotesForPercentage, 0.01)
	assert.InDelta(t, 33.333, *final.VotesAgainstPercentage, 0.01)
	assert.Zero(t, final.RewardPool)

	// 100 split across three voters leaves a refund of 1
	for _, voter := range voters {
		resp = env.do(t, http.MethodGet, "/api/v0/accounts/"+voter.PublicKey().String(), nil)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, uint64(33), decode[api.BalanceResponse](t, resp).Balance)
	}
	resp = env.do(t, http.MethodGet, "/api/v0/accounts/"+creator.PublicKey().String(), nil)
	assert.Equal(t, uint64(901), decode[api.BalanceResponse](t, resp).Balance)

	resp = env.do(t, http.MethodGet, "/api/v0/proposals/"+p.Address, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, final, decode[api.ProposalResponse](t, resp))

	env.waitIndexed(t)

	resp = env.do(t, http.MethodGet, "/api/v0/proposals/"+p.Address+"/votes", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	votes := decode[[]api.VoteResponse](t, resp)
	require.Len(t, votes, 3)
	assert.Equal(t, voters[0].PublicKey().String(), votes[0].Voter)
	assert.True(t, votes[0].Vote)
	assert.False(t, votes[2].Vote)

	resp = env.do(t, http.MethodGet, "/api/v0/accounts/"+voters[1].PublicKey().String()+"/votes", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	votes = decode[[]api.VoteResponse](t, resp)
	require.Len(t, votes, 1)
	assert.Equal(t, p.Address, votes[0].Proposal)

	resp = env.do(t, http.MethodGet, "/api/v0/proposals/"+p.Address+"/payouts", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	payouts := decode[[]api.PayoutResponse](t, resp)
	require.Len(t, payouts, 4)
	var total uint64
	for _, payout := range payouts {
		total += payout.Amount
	}
	assert.Equal(t, uint64(100), total)

	resp = env.do(t, http.MethodGet, "/health", nil)
	health := decode[api.HealthResponse](t, resp)
	assert.Equal(t, uint64(5), health.LedgerHeight)
	assert.Equal(t, uint64(5), health.IndexHeight)
}

func TestFinalizeAtVoterCap(t *testing.T) {
	// Enough voters that the finalize body passes 64 KiB
	const maxVoters = 1500
	env := setupTestEnvWithLedger(t, ledger.LedgerConfig{
		DevMode:   true,
		MaxVoters: maxVoters,
	})
	ctx := context.Background()
	creator := newKey(t)
	env.fund(t, creator.PublicKey(), maxVoters)
	p := env.createProposal(t, creator, "Large electorate", maxVoters)
	proposalAddr := solana.MustPublicKeyFromBase58(p.Address)

	voters := make([]solana.PublicKey, 0, maxVoters)
	for i := range maxVoters {
		voter := newKey(t).PublicKey()
		_, err := env.ledger.Vote(ctx, proposalAddr, voter, i%2 == 0)
		require.NoError(t, err)
		voters = append(voters, voter)
	}
	_, err := env.ledger.Vote(ctx, proposalAddr, newKey(t).PublicKey(), true)
	require.ErrorIs(t, err, ledger.ErrTooManyVoters)

	resp := env.finalize(t, p.Address, creator, voters)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	final := decode[api.ProposalResponse](t, resp)
	assert.False(t, final.OnGoing)
	assert.Zero(t, final.RewardPool)
	balance, err := env.ledger.Balance(voters[maxVoters-1])
	require.NoError(t, err)
	assert.Equal(t, uint64(1), balance)
}

func TestOversizedBody(t *testing.T) {
	env := setupTestEnv(t, false)
	creator := newKey(t)
	// Twice the default voter cap cannot fit
	voters := make([]string, 2*ledger.DefaultMaxVoters)
	for i := range voters {
		voters[i] = strings.Repeat("1", 200)
	}
	resp := env.do(
		t,
		http.MethodPost,
		"/api/v0/proposals/"+creator.PublicKey().String()+"/finalize",
		api.FinalizeRequest{
			Creator: creator.PublicKey().String(),
			Voters:  voters,
		},
	)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code, resp.Body.String())
	assert.Contains(t, decode[api.ErrorResponse](t, resp).Message, "request body exceeds")
}

func TestSignatureRejected(t *testing.T) {
	env := setupTestEnv(t, true)
	creator := newKey(t)
	other := newKey(t)

	tests := []struct {
		name      string
		signature string
	}{
		{name: "missing", signature: ""},
		{name: "not base58", signature: "0OIl"},
		{name: "too short", signature: "3yZe7d"},
		{
			name: "wrong signer",
			signature: sign(
				t,
				other,
				api.CreateProposalPayload(address.DefaultProgramID, creator.PublicKey(), "Test", 0),
			),
		},
		{
			name: "wrong payload",
			signature: sign(
				t,
				creator,
				api.CreateProposalPayload(address.DefaultProgramID, creator.PublicKey(), "Test", 1),
			),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/v0/proposals", api.CreateProposalRequest{
				Creator:     creator.PublicKey().String(),
				Description: "Test",
				Signature:   test.signature,
			})
			assert.Equal(t, http.StatusUnauthorized, resp.Code)
		})
	}
}

func TestErrorStatuses(t *testing.T) {
	env := setupTestEnv(t, true)
	creator := newKey(t)
	voter := newKey(t)
	stranger := newKey(t)

	// No funds for the deposit
	resp := env.do(t, http.MethodPost, "/api/v0/proposals", api.CreateProposalRequest{
		Creator:     creator.PublicKey().String(),
		Description: "Costly",
		Deposit:     5,
		Signature: sign(
			t,
			creator,
			api.CreateProposalPayload(address.DefaultProgramID, creator.PublicKey(), "Costly", 5),
		),
	})
	assert.Equal(t, http.StatusPaymentRequired, resp.Code)

	// Empty description
	resp = env.do(t, http.MethodPost, "/api/v0/proposals", api.CreateProposalRequest{
		Creator: creator.PublicKey().String(),
		Signature: sign(
			t,
			creator,
			api.CreateProposalPayload(address.DefaultProgramID, creator.PublicKey(), "", 0),
		),
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	p := env.createProposal(t, creator, "Free", 0)

	// One proposal per creator
	resp = env.do(t, http.MethodPost, "/api/v0/proposals", api.CreateProposalRequest{
		Creator:     creator.PublicKey().String(),
		Description: "Free",
		Signature: sign(
			t,
			creator,
			api.CreateProposalPayload(address.DefaultProgramID, creator.PublicKey(), "Free", 0),
		),
	})
	assert.Equal(t, http.StatusConflict, resp.Code)

	require.Equal(t, http.StatusOK, env.vote(t, p.Address, voter, true).Code)
	assert.Equal(t, http.StatusConflict, env.vote(t, p.Address, voter, false).Code)

	resp = env.finalize(t, p.Address, stranger, []solana.PublicKey{voter.PublicKey()})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.finalize(t, p.Address, creator, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.finalize(t, p.Address, creator, []solana.PublicKey{voter.PublicKey()})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.finalize(t, p.Address, creator, []solana.PublicKey{voter.PublicKey()})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, http.StatusConflict, env.vote(t, p.Address, stranger, true).Code)

	missing := newKey(t).PublicKey().String()
	resp = env.do(t, http.MethodGet, "/api/v0/proposals/"+missing, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, http.StatusNotFound, env.vote(t, missing, voter, true).Code)

	resp = env.do(t, http.MethodGet, "/api/v0/proposals/not-an-address", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(t, http.MethodPost, "/api/v0/proposals", map[string]any{"bogus": 1})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(t, http.MethodGet, "/api/v0/proposals?count=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(t, http.MethodGet, "/api/v0/proposals?status=pending", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	errResp := decode[api.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusBadRequest, errResp.StatusCode)
}

func TestListProposals(t *testing.T) {
	env := setupTestEnv(t, true)
	creators := []solana.PrivateKey{newKey(t), newKey(t), newKey(t)}
	addresses := make([]string, 0, len(creators))
	for i, creator := range creators {
		p := env.createProposal(t, creator, "Proposal", 0)
		addresses = append(addresses, p.Address)
		if i == 0 {
			resp := env.finalize(t, p.Address, creator, nil)
			require.Equal(t, http.StatusOK, resp.Code)
		}
	}
	env.waitIndexed(t)

	resp := env.do(t, http.MethodGet, "/api/v0/proposals", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	all := decode[[]api.ProposalResponse](t, resp)
	require.Len(t, all, 3)
	for i, p := range all {
		assert.Equal(t, addresses[i], p.Address)
	}

	resp = env.do(t, http.MethodGet, "/api/v0/proposals?count=2&page=2", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "3", resp.Header().Get("X-Pagination-Count-Total"))
	assert.Equal(t, "2", resp.Header().Get("X-Pagination-Page-Total"))
	page := decode[[]api.ProposalResponse](t, resp)
	require.Len(t, page, 1)
	assert.Equal(t, addresses[2], page[0].Address)

	resp = env.do(t, http.MethodGet, "/api/v0/proposals?order=desc&count=1", nil)
	page = decode[[]api.ProposalResponse](t, resp)
	require.Len(t, page, 1)
	assert.Equal(t, addresses[2], page[0].Address)

	resp = env.do(t, http.MethodGet, "/api/v0/proposals?status=closed", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	closed := decode[[]api.ProposalResponse](t, resp)
	require.Len(t, closed, 1)
	assert.Equal(t, addresses[0], closed[0].Address)
	require.NotNil(t, closed[0].Result)
	assert.Equal(t, "Tie", *closed[0].Result)

	resp = env.do(t, http.MethodGet, "/api/v0/proposals?status=open", nil)
	assert.Len(t, decode[[]api.ProposalResponse](t, resp), 2)

	resp = env.do(
		t,
		http.MethodGet,
		"/api/v0/proposals?creator="+creators[1].PublicKey().String(),
		nil,
	)
	byCreator := decode[[]api.ProposalResponse](t, resp)
	require.Len(t, byCreator, 1)
	assert.Equal(t, addresses[1], byCreator[0].Address)
}

func TestAirdrop(t *testing.T) {
	env := setupTestEnv(t, true)
	account := newKey(t).PublicKey().String()

	resp := env.do(t, http.MethodPost, "/api/v0/accounts/"+account+"/airdrop", api.AirdropRequest{Amount: 42})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, uint64(42), decode[api.BalanceResponse](t, resp).Balance)

	resp = env.do(t, http.MethodPost, "/api/v0/accounts/"+account+"/airdrop", api.AirdropRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	disabled := setupTestEnv(t, false)
	resp = disabled.do(t, http.MethodPost, "/api/v0/accounts/"+account+"/airdrop", api.AirdropRequest{Amount: 42})
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestRateLimit(t *testing.T) {
	env := setupTestEnv(t, true)
	a := api.New(
		api.APIConfig{RateLimit: 1, RateLimitBurst: 2},
		env.ledger,
		env.db,
		env.eventBus,
		nil,
	)
	var codes []int
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v0/proposals", nil)
		recorder := httptest.NewRecorder()
		a.Handler().ServeHTTP(recorder, req)
		codes = append(codes, recorder.Code)
	}
	assert.Equal(
		t,
		[]int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests},
		codes,
	)

	// Health checks are not rate limited
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	a.Handler().ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestEventStream(t *testing.T) {
	env := setupTestEnv(t, true)
	server := httptest.NewServer(env.api.Handler())
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v0/events", nil)
	require.NoError(t, err)
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Headers are flushed after the subscription is registered
	creator := newKey(t)
	p := env.createProposal(t, creator, "Streamed", 0)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var received []string
	timeout := time.After(5 * time.Second)
	for len(received) < 3 {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed early")
			if line != "" {
				received = append(received, line)
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, "id: 1", received[0])
	assert.Equal(t, "event: proposal", received[1])
	require.True(t, strings.HasPrefix(received[2], "data: "))
	var evt api.EventResponse
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(received[2], "data: ")), &evt))
	assert.Equal(t, "created", evt.Action)
	assert.Equal(t, uint64(1), evt.Height)
	assert.Equal(t, p.Address, evt.Proposal.Address)

	cancel()
	for range lines {
	}
}
