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

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/blinklabs-io/ballot/address"
	"github.com/blinklabs-io/ballot/database/models"
	"github.com/blinklabs-io/ballot/internal/version"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
)

const (
	// baseRequestBodySize bounds request bodies apart from finalize voter
	// lists
	baseRequestBodySize = 64 * 1024
	// voterEntrySize covers one base58 address in a JSON array with
	// quotes, separator and indentation
	voterEntrySize = 64
)

// requestBodyLimit sizes the body limit so a finalize listing every
// possible voter always fits
func requestBodyLimit(maxVoters int) int64 {
	return baseRequestBodySize + int64(maxVoters)*voterEntrySize
}

var errInvalidRequest = errors.New("invalid request")

// writeJSON writes a JSON response with the given status
// code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

func (a *API) decodeBody(
	w http.ResponseWriter,
	r *http.Request,
	v any,
) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errInvalidRequest, err)
	}
	return nil
}

func (a *API) writeBadRequest(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(
			w,
			http.StatusRequestEntityTooLarge,
			http.StatusText(http.StatusRequestEntityTooLarge),
			fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit),
		)
		return
	}
	writeError(
		w,
		http.StatusBadRequest,
		http.StatusText(http.StatusBadRequest),
		err.Error(),
	)
}

// addressParam parses the named URL parameter as an address
func addressParam(r *http.Request, name string) (solana.PublicKey, error) {
	return address.Parse(chi.URLParam(r, name))
}

// handleRoot handles GET / and returns API metadata.
func (a *API) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Name:      "ballot",
		Version:   version.GetVersionString(),
		ProgramID: a.ledger.ProgramID().String(),
	})
}

// handleHealth handles GET /health. The service is healthy when the
// ledger can be read.
func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ledgerHeight, err := a.ledger.Height()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{})
		return
	}
	resp := HealthResponse{
		IsHealthy:    true,
		LedgerHeight: ledgerHeight,
	}
	if a.index != nil {
		if indexHeight, err := a.index.IndexHeight(nil); err == nil {
			resp.IndexHeight = indexHeight
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCreateProposal handles POST /api/v0/proposals
func (a *API) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	var req CreateProposalRequest
	if err := a.decodeBody(w, r, &req); err != nil {
		a.writeBadRequest(w, err)
		return
	}
	creator, err := address.Parse(req.Creator)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	if err := verifySignature(
		creator,
		CreateProposalPayload(
			a.ledger.ProgramID(),
			creator,
			req.Description,
			req.Deposit,
		),
		req.Signature,
	); err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	p, err := a.ledger.CreateProposal(
		r.Context(),
		creator,
		req.Description,
		req.Deposit,
	)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v0/proposals/"+p.Address.String())
	writeJSON(w, http.StatusCreated, newProposalResponse(p))
}

// handleListProposals handles GET /api/v0/proposals. Proposals are listed
// from the ledger in creation order. The status and creator filters are
// answered by the index.
func (a *API) handleListProposals(w http.ResponseWriter, r *http.Request) {
	params, err := ParsePagination(r)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	query := r.URL.Query()
	filter := models.ProposalFilter{
		Status:  query.Get("status"),
		Creator: query.Get("creator"),
	}
	switch filter.Status {
	case "", models.ProposalStatusOpen, models.ProposalStatusClosed:
	default:
		a.writeBadRequest(
			w,
			fmt.Errorf("%w: unknown status %q", errInvalidRequest, filter.Status),
		)
		return
	}
	if filter.Creator != "" {
		if _, err := address.Parse(filter.Creator); err != nil {
			a.writeAPIError(w, r, err)
			return
		}
	}
	var proposals []*ledger.Proposal
	if filter.Status == "" && filter.Creator == "" {
		proposals, err = a.ledger.Proposals()
	} else {
		proposals, err = a.filteredProposals(filter)
	}
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	page := paginate(w, proposals, params)
	ret := make([]ProposalResponse, 0, len(page))
	for _, p := range page {
		ret = append(ret, newProposalResponse(p))
	}
	writeJSON(w, http.StatusOK, ret)
}

func (a *API) filteredProposals(
	filter models.ProposalFilter,
) ([]*ledger.Proposal, error) {
	if a.index == nil {
		return nil, errors.New("index is not available")
	}
	indexed, err := a.index.GetProposals(filter, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]*ledger.Proposal, 0, len(indexed))
	for _, item := range indexed {
		addr, err := address.Parse(item.Address)
		if err != nil {
			return nil, err
		}
		p, err := a.ledger.Proposal(addr)
		if err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}
	return ret, nil
}

// handleGetProposal handles GET /api/v0/proposals/{address}
func (a *API) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	p, err := a.ledger.Proposal(addr)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProposalResponse(p))
}

// handleVote handles POST /api/v0/proposals/{address}/votes
func (a *API) handleVote(w http.ResponseWriter, r *http.Request) {
	proposalAddr, err := addressParam(r, "address")
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	var req VoteRequest
	if err := a.decodeBody(w, r, &req); err != nil {
		a.writeBadRequest(w, err)
		return
	}
	voter, err := address.Parse(req.Voter)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	if err := verifySignature(
		voter,
		VotePayload(a.ledger.ProgramID(), proposalAddr, voter, req.Vote),
		req.Signature,
	); err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	p, err := a.ledger.Vote(r.Context(), proposalAddr, voter, req.Vote)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProposalResponse(p))
}

// handleFinalize handles POST /api/v0/proposals/{address}/finalize
func (a *API) handleFinalize(w http.ResponseWriter, r *http.Request) {
	proposalAddr, err := addressParam(r, "address")
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	var req FinalizeRequest
	if err := a.decodeBody(w, r, &req); err != nil {
		a.writeBadRequest(w, err)
		return
	}
	creator, err := address.Parse(req.Creator)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	voters := make([]solana.PublicKey, 0, len(req.Voters))
	for _, tmpVoter := range req.Voters {
		voter, err := address.Parse(tmpVoter)
		if err != nil {
			a.writeAPIError(w, r, err)
			return
		}
		voters = append(voters, voter)
	}
	if err := verifySignature(
		creator,
		FinalizePayload(a.ledger.ProgramID(), proposalAddr, creator, voters),
		req.Signature,
	); err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	p, err := a.ledger.Finalize(r.Context(), proposalAddr, creator, voters)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProposalResponse(p))
}

// handleProposalVotes handles GET /api/v0/proposals/{address}/votes
func (a *API) handleProposalVotes(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	a.writeVotes(w, r, func() ([]models.Vote, error) {
		return a.index.GetVotesByProposal(addr.String(), nil)
	})
}

// handleAccountVotes handles GET /api/v0/accounts/{address}/votes
func (a *API) handleAccountVotes(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	a.writeVotes(w, r, func() ([]models.Vote, error) {
		return a.index.GetVotesByVoter(addr.String(), nil)
	})
}

func (a *API) writeVotes(
	w http.ResponseWriter,
	r *http.Request,
	getVotes func() ([]models.Vote, error),
) {
	params, err := ParsePagination(r)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	if a.index == nil {
		a.writeAPIError(w, r, errors.New("index is not available"))
		return
	}
	votes, err := getVotes()
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	page := paginate(w, votes, params)
	ret := make([]VoteResponse, 0, len(page))
	for _, vote := range page {
		ret = append(ret, newVoteResponse(vote))
	}
	writeJSON(w, http.StatusOK, ret)
}

// handlePayouts handles GET /api/v0/proposals/{address}/payouts
func (a *API) handlePayouts(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	if a.index == nil {
		a.writeAPIError(w, r, errors.New("index is not available"))
		return
	}
	payouts, err := a.index.GetPayouts(addr.String(), nil)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	ret := make([]PayoutResponse, 0, len(payouts))
	for _, payout := range payouts {
		ret = append(ret, newPayoutResponse(payout))
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleBalance handles GET /api/v0/accounts/{address}
func (a *API) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	balance, err := a.ledger.Balance(addr)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		Address: addr.String(),
		Balance: balance,
	})
}

// handleAirdrop handles POST /api/v0/accounts/{address}/airdrop. The ledger
// rejects it outside dev mode.
func (a *API) handleAirdrop(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	var req AirdropRequest
	if err := a.decodeBody(w, r, &req); err != nil {
		a.writeBadRequest(w, err)
		return
	}
	balance, err := a.ledger.Airdrop(r.Context(), addr, req.Amount)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		Address: addr.String(),
		Balance: balance,
	})
}
