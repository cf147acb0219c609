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

// Package client is an HTTP client for the ballot REST API. Mutating calls
// are signed with a keystore.Signer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blinklabs-io/ballot/address"
	"github.com/blinklabs-io/ballot/api"
	"github.com/blinklabs-io/ballot/internal/retry"
	"github.com/blinklabs-io/ballot/keystore"
	"github.com/gagliardetto/solana-go"
)

// maxResponseBytes limits JSON API responses to 10 MiB
const maxResponseBytes = 10 << 20

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Status   int
	Response api.ErrorResponse
}

func (e *StatusError) Error() string {
	if e.Response.Message != "" {
		return fmt.Sprintf(
			"unexpected status %d: %s",
			e.Status,
			e.Response.Message,
		)
	}
	return fmt.Sprintf("unexpected status %d", e.Status)
}

// StatusCode returns the HTTP status of the response.
func (e *StatusError) StatusCode() int {
	return e.Status
}

// Client is an HTTP client for the ballot REST API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config
	// programID is learned from the server on the first signed call
	programID      solana.PublicKey
	programIDMutex sync.Mutex
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetryConfig sets the retry policy for transient failures.
func WithRetryConfig(cfg retry.Config) ClientOption {
	return func(c *Client) {
		c.retryConfig = cfg
	}
}

// WithProgramID fixes the program ID that signed payloads are bound to
// instead of asking the server for it
func WithProgramID(programID solana.PublicKey) ClientOption {
	return func(c *Client) {
		c.programID = programID
	}
}

// NewClient creates a new API client for the server at baseURL
// (e.g., "http://localhost:8080").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryConfig: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListOptions filters and paginates list calls. Zero values use the
// server defaults.
type ListOptions struct {
	Status  string
	Creator string
	Count   int
	Page    int
	Order   string
}

func (o ListOptions) query() url.Values {
	ret := url.Values{}
	if o.Status != "" {
		ret.Set("status", o.Status)
	}
	if o.Creator != "" {
		ret.Set("creator", o.Creator)
	}
	if o.Count > 0 {
		ret.Set("count", strconv.Itoa(o.Count))
	}
	if o.Page > 0 {
		ret.Set("page", strconv.Itoa(o.Page))
	}
	if o.Order != "" {
		ret.Set("order", o.Order)
	}
	return ret
}

// Root returns the server name and version.
func (c *Client) Root(ctx context.Context) (*api.RootResponse, error) {
	var ret api.RootResponse
	if err := c.get(ctx, "/", nil, &ret); err != nil {
		return nil, fmt.Errorf("getting root: %w", err)
	}
	return &ret, nil
}

// ProgramID returns the program ID of the server's ledger. Signatures only
// verify against the deployment they were made for.
func (c *Client) ProgramID(ctx context.Context) (solana.PublicKey, error) {
	c.programIDMutex.Lock()
	defer c.programIDMutex.Unlock()
	if !c.programID.IsZero() {
		return c.programID, nil
	}
	root, err := c.Root(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	programID, err := address.Parse(root.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("server program id: %w", err)
	}
	c.programID = programID
	return programID, nil
}

// Health returns the server health and ledger and index heights.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var ret api.HealthResponse
	if err := c.get(ctx, "/health", nil, &ret); err != nil {
		return nil, fmt.Errorf("getting health: %w", err)
	}
	return &ret, nil
}

// CreateProposal creates a proposal owned by the signer and escrows the
// deposit as its reward pool.
func (c *Client) CreateProposal(
	ctx context.Context,
	signer keystore.Signer,
	description string,
	deposit uint64,
) (*api.ProposalResponse, error) {
	programID, err := c.ProgramID(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating proposal: %w", err)
	}
	creator := signer.PublicKey()
	sig, err := signer.Sign(
		api.CreateProposalPayload(programID, creator, description, deposit),
	)
	if err != nil {
		return nil, fmt.Errorf("signing proposal: %w", err)
	}
	var ret api.ProposalResponse
	if err := c.post(
		ctx,
		"/api/v0/proposals",
		api.CreateProposalRequest{
			Creator:     creator.String(),
			Description: description,
			Deposit:     deposit,
			Signature:   sig.String(),
		},
		&ret,
	); err != nil {
		return nil, fmt.Errorf("creating proposal: %w", err)
	}
	return &ret, nil
}

// Vote casts the signer's vote on a proposal.
func (c *Client) Vote(
	ctx context.Context,
	signer keystore.Signer,
	proposal solana.PublicKey,
	vote bool,
) (*api.ProposalResponse, error) {
	programID, err := c.ProgramID(ctx)
	if err != nil {
		return nil, fmt.Errorf("voting on proposal %s: %w", proposal, err)
	}
	voter := signer.PublicKey()
	sig, err := signer.Sign(api.VotePayload(programID, proposal, voter, vote))
	if err != nil {
		return nil, fmt.Errorf("signing vote: %w", err)
	}
	var ret api.ProposalResponse
	if err := c.post(
		ctx,
		proposalPath(proposal, "votes"),
		api.VoteRequest{
			Voter:     voter.String(),
			Vote:      vote,
			Signature: sig.String(),
		},
		&ret,
	); err != nil {
		return nil, fmt.Errorf("voting on proposal %s: %w", proposal, err)
	}
	return &ret, nil
}

// Finalize closes a proposal. The signer must be its creator and voters
// must list every recorded voter.
func (c *Client) Finalize(
	ctx context.Context,
	signer keystore.Signer,
	proposal solana.PublicKey,
	voters []solana.PublicKey,
) (*api.ProposalResponse, error) {
	programID, err := c.ProgramID(ctx)
	if err != nil {
		return nil, fmt.Errorf("finalizing proposal %s: %w", proposal, err)
	}
	creator := signer.PublicKey()
	sig, err := signer.Sign(
		api.FinalizePayload(programID, proposal, creator, voters),
	)
	if err != nil {
		return nil, fmt.Errorf("signing finalize: %w", err)
	}
	tmpVoters := make([]string, 0, len(voters))
	for _, voter := range voters {
		tmpVoters = append(tmpVoters, voter.String())
	}
	var ret api.ProposalResponse
	if err := c.post(
		ctx,
		proposalPath(proposal, "finalize"),
		api.FinalizeRequest{
			Creator:   creator.String(),
			Voters:    tmpVoters,
			Signature: sig.String(),
		},
		&ret,
	); err != nil {
		return nil, fmt.Errorf("finalizing proposal %s: %w", proposal, err)
	}
	return &ret, nil
}

// FinalizeWithRecordedVoters fetches the proposal and finalizes it with
// its current voter list.
func (c *Client) FinalizeWithRecordedVoters(
	ctx context.Context,
	signer keystore.Signer,
	proposal solana.PublicKey,
) (*api.ProposalResponse, error) {
	p, err := c.GetProposal(ctx, proposal)
	if err != nil {
		return nil, err
	}
	voters := make([]solana.PublicKey, 0, len(p.Voters))
	for _, tmpVoter := range p.Voters {
		voter, err := solana.PublicKeyFromBase58(tmpVoter)
		if err != nil {
			return nil, fmt.Errorf("parsing voter %q: %w", tmpVoter, err)
		}
		voters = append(voters, voter)
	}
	return c.Finalize(ctx, signer, proposal, voters)
}

// GetProposal returns a single proposal.
func (c *Client) GetProposal(
	ctx context.Context,
	proposal solana.PublicKey,
) (*api.ProposalResponse, error) {
	var ret api.ProposalResponse
	if err := c.get(ctx, proposalPath(proposal, ""), nil, &ret); err != nil {
		return nil, fmt.Errorf("getting proposal %s: %w", proposal, err)
	}
	return &ret, nil
}

// ListProposals returns proposals in creation order.
func (c *Client) ListProposals(
	ctx context.Context,
	opts ListOptions,
) ([]api.ProposalResponse, error) {
	var ret []api.ProposalResponse
	if err := c.get(ctx, "/api/v0/proposals", opts.query(), &ret); err != nil {
		return nil, fmt.Errorf("listing proposals: %w", err)
	}
	return ret, nil
}

// ProposalVotes returns the indexed votes on a proposal.
func (c *Client) ProposalVotes(
	ctx context.Context,
	proposal solana.PublicKey,
	opts ListOptions,
) ([]api.VoteResponse, error) {
	var ret []api.VoteResponse
	if err := c.get(
		ctx,
		proposalPath(proposal, "votes"),
		opts.query(),
		&ret,
	); err != nil {
		return nil, fmt.Errorf("listing votes on %s: %w", proposal, err)
	}
	return ret, nil
}

// Payouts returns the payouts made when a proposal was finalized.
func (c *Client) Payouts(
	ctx context.Context,
	proposal solana.PublicKey,
) ([]api.PayoutResponse, error) {
	var ret []api.PayoutResponse
	if err := c.get(
		ctx,
		proposalPath(proposal, "payouts"),
		nil,
		&ret,
	); err != nil {
		return nil, fmt.Errorf("listing payouts of %s: %w", proposal, err)
	}
	return ret, nil
}

// Balance returns the balance of an account.
func (c *Client) Balance(
	ctx context.Context,
	account solana.PublicKey,
) (uint64, error) {
	var ret api.BalanceResponse
	if err := c.get(ctx, accountPath(account, ""), nil, &ret); err != nil {
		return 0, fmt.Errorf("getting balance of %s: %w", account, err)
	}
	return ret.Balance, nil
}

// AccountVotes returns the indexed votes cast by an account.
func (c *Client) AccountVotes(
	ctx context.Context,
	account solana.PublicKey,
	opts ListOptions,
) ([]api.VoteResponse, error) {
	var ret []api.VoteResponse
	if err := c.get(
		ctx,
		accountPath(account, "votes"),
		opts.query(),
		&ret,
	); err != nil {
		return nil, fmt.Errorf("listing votes by %s: %w", account, err)
	}
	return ret, nil
}

// Airdrop credits an account on a server running in dev mode and returns
// the new balance.
func (c *Client) Airdrop(
	ctx context.Context,
	account solana.PublicKey,
	amount uint64,
) (uint64, error) {
	var ret api.BalanceResponse
	if err := c.post(
		ctx,
		accountPath(account, "airdrop"),
		api.AirdropRequest{Amount: amount},
		&ret,
	); err != nil {
		return 0, fmt.Errorf("airdrop to %s: %w", account, err)
	}
	return ret.Balance, nil
}

func proposalPath(proposal solana.PublicKey, sub string) string {
	ret := "/api/v0/proposals/" + url.PathEscape(proposal.String())
	if sub != "" {
		ret += "/" + sub
	}
	return ret
}

func accountPath(account solana.PublicKey, sub string) string {
	ret := "/api/v0/accounts/" + url.PathEscape(account.String())
	if sub != "" {
		ret += "/" + sub
	}
	return ret
}

func (c *Client) get(
	ctx context.Context,
	path string,
	query url.Values,
	out any,
) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	return retry.Do(ctx, c.retryConfig, func() error {
		return c.do(ctx, http.MethodGet, reqURL, nil, out)
	})
}

// post retries only when the server rejected the request before applying
// it, since a lost response may hide a committed write
func (c *Client) post(
	ctx context.Context,
	path string,
	body any,
	out any,
) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	cfg := c.retryConfig
	cfg.Retryable = isRejectedBeforeApply
	return retry.Do(ctx, cfg, func() error {
		return c.do(ctx, http.MethodPost, c.baseURL+path, data, out)
	})
}

func isRejectedBeforeApply(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.Status == http.StatusTooManyRequests ||
		statusErr.Status == http.StatusServiceUnavailable
}

func (c *Client) do(
	ctx context.Context,
	method string,
	reqURL string,
	body []byte,
	out any,
) error {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req) //nolint:gosec
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()
	limited := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Status: resp.StatusCode}
		// Best effort, the body may not be JSON
		_ = json.NewDecoder(limited).Decode(&statusErr.Response)
		return statusErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
