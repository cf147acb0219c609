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

// Package ledger implements the proposal state machine: creating proposals
// with an escrowed reward pool, casting exactly one vote per voter, and
// finalizing with a tally and payout of the pool. Every operation is a single
// serializable transaction against the blob store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/ballot/address"
	"github.com/blinklabs-io/ballot/database"
	"github.com/blinklabs-io/ballot/database/types"
	"github.com/blinklabs-io/ballot/event"
	"github.com/blinklabs-io/ballot/internal/retry"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxVoters     = 256
	DefaultMaxTxnRetries = 16

	tracerName = "github.com/blinklabs-io/ballot/ledger"

	txnRetryBaseBackoff = time.Millisecond
	txnRetryMaxBackoff  = 50 * time.Millisecond
)

type LedgerConfig struct {
	Database     *database.Database
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Escrow defaults to Database
	Escrow    Escrow
	ProgramID solana.PublicKey
	MaxVoters int
	// MaxTxnRetries bounds how often a transition is re-run after losing a
	// commit race
	MaxTxnRetries int
	// DevMode enables Airdrop
	DevMode bool
}

type Ledger struct {
	config  LedgerConfig
	db      *database.Database
	escrow  Escrow
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *ledgerMetrics
	// commitMutex keeps events in commit order
	commitMutex sync.Mutex
}

func New(cfg LedgerConfig) (*Ledger, error) {
	if cfg.Database == nil {
		return nil, errors.New("database is required")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Escrow == nil {
		cfg.Escrow = cfg.Database
	}
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = address.DefaultProgramID
	}
	if cfg.MaxVoters <= 0 {
		cfg.MaxVoters = DefaultMaxVoters
	}
	if cfg.MaxTxnRetries < 0 {
		return nil, fmt.Errorf("invalid max txn retries: %d", cfg.MaxTxnRetries)
	}
	if cfg.MaxTxnRetries == 0 {
		cfg.MaxTxnRetries = DefaultMaxTxnRetries
	}
	l := &Ledger{
		config: cfg,
		db:     cfg.Database,
		escrow: cfg.Escrow,
		logger: cfg.Logger,
		tracer: otel.Tracer(tracerName),
	}
	if cfg.PromRegistry != nil {
		l.metrics = &ledgerMetrics{}
		l.metrics.init(cfg.PromRegistry)
		if err := l.initMetrics(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Ledger) initMetrics() error {
	txn := l.db.BlobTxn(false)
	defer txn.Release()
	height, err := l.db.LedgerHeight(txn)
	if err != nil {
		return fmt.Errorf("get ledger height: %w", err)
	}
	proposals, err := l.proposals(txn)
	if err != nil {
		return err
	}
	var open int
	for _, p := range proposals {
		if p.OnGoing {
			open++
		}
	}
	l.metrics.height.Set(float64(height))
	l.metrics.proposalsOpen.Set(float64(open))
	return nil
}

// ProgramID returns the program ID addresses are derived under
func (l *Ledger) ProgramID() solana.PublicKey {
	return l.config.ProgramID
}

// MaxVoters returns the voter cap of a proposal
func (l *Ledger) MaxVoters() int {
	return l.config.MaxVoters
}

// ProposalAddress returns the address of the proposal owned by creator
func (l *Ledger) ProposalAddress(
	creator solana.PublicKey,
) (solana.PublicKey, error) {
	return address.ProposalAddress(l.config.ProgramID, creator)
}

// VoterRecordAddress returns the address of the record of voter's vote on
// proposal
func (l *Ledger) VoterRecordAddress(
	proposal solana.PublicKey,
	voter solana.PublicKey,
) (solana.PublicKey, error) {
	return address.VoterRecordAddress(l.config.ProgramID, proposal, voter)
}

// Height returns the number of committed proposal transitions
func (l *Ledger) Height() (uint64, error) {
	txn := l.db.BlobTxn(false)
	defer txn.Release()
	return l.db.LedgerHeight(txn)
}

// CreateProposal opens a proposal owned by creator and moves deposit from the
// creator's balance into the proposal's reward pool
func (l *Ledger) CreateProposal(
	ctx context.Context,
	creator solana.PublicKey,
	description string,
	deposit uint64,
) (*Proposal, error) {
	ctx, span := l.startSpan(ctx, "CreateProposal",
		attribute.String("creator", creator.String()),
		attribute.Int64("deposit", int64(deposit)), //nolint:gosec
	)
	defer span.End()
	var ret *Proposal
	err := l.instrument("create", func() error {
		if err := validateDescription(description); err != nil {
			return err
		}
		addr, err := l.ProposalAddress(creator)
		if err != nil {
			return err
		}
		evt, err := l.transition(ctx, func(txn *database.Txn, height uint64) (*ProposalEvent, error) {
			p := &Proposal{
				Address:       addr,
				Creator:       creator,
				Description:   description,
				Deposit:       deposit,
				RewardPool:    deposit,
				Voters:        []solana.PublicKey{},
				OnGoing:       true,
				CreatedHeight: height,
				UpdatedHeight: height,
				Version:       proposalRecordVersion,
			}
			data, err := encodeProposal(p)
			if err != nil {
				return nil, err
			}
			seq, err := l.db.CreateProposalRecord(addr.Bytes(), data, txn)
			if err != nil {
				if errors.Is(err, database.ErrRecordExists) {
					return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, addr)
				}
				return nil, err
			}
			if err := l.transfer(creator, addr, deposit, txn); err != nil {
				return nil, err
			}
			return &ProposalEvent{
				Action:   ProposalActionCreated,
				Sequence: seq,
				Proposal: p,
			}, nil
		})
		if err != nil {
			return err
		}
		ret = evt.Proposal.Clone()
		if l.metrics != nil {
			l.metrics.proposalsOpen.Inc()
		}
		l.logger.Info(
			"created proposal",
			"component", "ledger",
			"proposal", addr.String(),
			"creator", creator.String(),
			"deposit", deposit,
			"height", evt.Height,
		)
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return ret, nil
}

// Vote records voter's choice on a proposal. A voter can vote once per
// proposal.
func (l *Ledger) Vote(
	ctx context.Context,
	proposalAddr solana.PublicKey,
	voter solana.PublicKey,
	choice bool,
) (*Proposal, error) {
	ctx, span := l.startSpan(ctx, "Vote",
		attribute.String("proposal", proposalAddr.String()),
		attribute.String("voter", voter.String()),
		attribute.Bool("vote", choice),
	)
	defer span.End()
	var ret *Proposal
	err := l.instrument("vote", func() error {
		recordAddr, err := l.VoterRecordAddress(proposalAddr, voter)
		if err != nil {
			return err
		}
		evt, err := l.transition(ctx, func(txn *database.Txn, height uint64) (*ProposalEvent, error) {
			p, err := l.getProposal(proposalAddr, txn)
			if err != nil {
				return nil, err
			}
			if !p.OnGoing {
				return nil, ErrProposalClosed
			}
			rec := &VoterRecord{
				Address:  recordAddr,
				Proposal: proposalAddr,
				Voter:    voter,
				Vote:     choice,
				Height:   height,
				Version:  voterRecordRecordVersion,
			}
			data, err := encodeVoterRecord(rec)
			if err != nil {
				return nil, err
			}
			// Creating the voter record is the double vote gate
			if err := l.db.CreateVoterRecord(recordAddr.Bytes(), data, txn); err != nil {
				if errors.Is(err, database.ErrRecordExists) {
					return nil, ErrAlreadyVoted
				}
				return nil, err
			}
			if len(p.Voters) >= l.config.MaxVoters {
				return nil, fmt.Errorf(
					"%w: limit is %d",
					ErrTooManyVoters,
					l.config.MaxVoters,
				)
			}
			if choice {
				p.VotesFor++
			} else {
				p.VotesAgainst++
			}
			p.Voters = append(p.Voters, voter)
			p.UpdatedHeight = height
			if err := l.putProposal(p, txn); err != nil {
				return nil, err
			}
			return &ProposalEvent{
				Action:      ProposalActionVoted,
				Proposal:    p,
				VoterRecord: rec,
			}, nil
		})
		if err != nil {
			return err
		}
		ret = evt.Proposal.Clone()
		l.logger.Debug(
			"recorded vote",
			"component", "ledger",
			"proposal", proposalAddr.String(),
			"voter", voter.String(),
			"vote", choice,
			"height", evt.Height,
		)
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return ret, nil
}

// Finalize closes a proposal, computes its result and pays out the reward
// pool. Only the creator can finalize, and recordedVoters must match the
// recorded voters as a set.
func (l *Ledger) Finalize(
	ctx context.Context,
	proposalAddr solana.PublicKey,
	caller solana.PublicKey,
	recordedVoters []solana.PublicKey,
) (*Proposal, error) {
	ctx, span := l.startSpan(ctx, "Finalize",
		attribute.String("proposal", proposalAddr.String()),
		attribute.String("caller", caller.String()),
	)
	defer span.End()
	var ret *Proposal
	var payouts []Payout
	err := l.instrument("finalize", func() error {
		evt, err := l.transition(ctx, func(txn *database.Txn, height uint64) (*ProposalEvent, error) {
			p, err := l.getProposal(proposalAddr, txn)
			if err != nil {
				return nil, err
			}
			if !p.Creator.Equals(caller) {
				return nil, ErrUnauthorized
			}
			if !p.OnGoing {
				return nil, ErrAlreadyFinalized
			}
			if !sameVoterSet(p.Voters, recordedVoters) {
				return nil, ErrVoterListMismatch
			}
			p.Result, p.VotesForPercentage, p.VotesAgainstPercentage = Tally(
				p.VotesFor,
				p.VotesAgainst,
			)
			plan := PlanPayouts(p.RewardPool, p.Voters, p.Creator)
			if err := l.escrow.Debit(p.Address.Bytes(), p.RewardPool, txn); err != nil {
				return nil, fmt.Errorf("debit reward pool: %w", err)
			}
			for _, payout := range plan {
				if err := l.escrow.Credit(payout.Recipient.Bytes(), payout.Amount, txn); err != nil {
					if errors.Is(err, database.ErrBalanceOverflow) {
						return nil, fmt.Errorf(
							"%w: payout to %s",
							ErrOverflow,
							payout.Recipient,
						)
					}
					return nil, err
				}
			}
			p.RewardPool = 0
			p.OnGoing = false
			p.UpdatedHeight = height
			if err := l.putProposal(p, txn); err != nil {
				return nil, err
			}
			return &ProposalEvent{
				Action:   ProposalActionFinalized,
				Proposal: p,
				Payouts:  plan,
			}, nil
		})
		if err != nil {
			return err
		}
		ret = evt.Proposal.Clone()
		payouts = evt.Payouts
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if l.metrics != nil {
		l.metrics.proposalsOpen.Dec()
		for _, payout := range payouts {
			l.metrics.payoutsTotal.WithLabelValues(string(payout.Kind)).
				Add(float64(payout.Amount))
		}
	}
	l.logger.Info(
		"finalized proposal",
		"component", "ledger",
		"proposal", proposalAddr.String(),
		"result", ret.Result.String(),
		"votes_for", ret.VotesFor,
		"votes_against", ret.VotesAgainst,
		"payouts", len(payouts),
		"height", ret.UpdatedHeight,
	)
	return ret, nil
}

// Proposal returns the proposal at addr
func (l *Ledger) Proposal(addr solana.PublicKey) (*Proposal, error) {
	txn := l.db.BlobTxn(false)
	defer txn.Release()
	return l.getProposal(addr, txn)
}

// Proposals returns all proposals in creation order
func (l *Ledger) Proposals() ([]*Proposal, error) {
	txn := l.db.BlobTxn(false)
	defer txn.Release()
	return l.proposals(txn)
}

func (l *Ledger) proposals(txn *database.Txn) ([]*Proposal, error) {
	addrs, err := l.db.ProposalAddresses(txn)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	ret := make([]*Proposal, 0, len(addrs))
	for _, addr := range addrs {
		p, err := l.getProposal(solana.PublicKeyFromBytes(addr), txn)
		if err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}
	return ret, nil
}

// VoterRecord returns the record of voter's vote on proposal, or
// ErrNotFound when they have not voted
func (l *Ledger) VoterRecord(
	proposal solana.PublicKey,
	voter solana.PublicKey,
) (*VoterRecord, error) {
	recordAddr, err := l.VoterRecordAddress(proposal, voter)
	if err != nil {
		return nil, err
	}
	txn := l.db.BlobTxn(false)
	defer txn.Release()
	return l.getVoterRecord(recordAddr, txn)
}

// Balance returns the escrow balance of an account
func (l *Ledger) Balance(account solana.PublicKey) (uint64, error) {
	txn := l.db.BlobTxn(false)
	defer txn.Release()
	return l.escrow.Balance(account.Bytes(), txn)
}

// Airdrop credits amount to account and returns the new balance. It is only
// available in dev mode.
func (l *Ledger) Airdrop(
	ctx context.Context,
	account solana.PublicKey,
	amount uint64,
) (uint64, error) {
	ctx, span := l.startSpan(ctx, "Airdrop",
		attribute.String("account", account.String()),
		attribute.Int64("amount", int64(amount)), //nolint:gosec
	)
	defer span.End()
	var balance uint64
	err := l.instrument("airdrop", func() error {
		if !l.config.DevMode {
			return ErrAirdropDisabled
		}
		if amount == 0 {
			return fmt.Errorf("%w: airdrop of 0", ErrInvalidAmount)
		}
		return l.withRetry(ctx, func() error {
			txn := l.db.BlobTxn(true)
			defer txn.Release()
			if err := l.escrow.Credit(account.Bytes(), amount, txn); err != nil {
				if errors.Is(err, database.ErrBalanceOverflow) {
					return fmt.Errorf("%w: airdrop to %s", ErrOverflow, account)
				}
				return err
			}
			var err error
			balance, err = l.escrow.Balance(account.Bytes(), txn)
			if err != nil {
				return err
			}
			return txn.Commit()
		})
	})
	if err != nil {
		recordSpanError(span, err)
		return 0, err
	}
	l.logger.Debug(
		"airdrop",
		"component", "ledger",
		"account", account.String(),
		"amount", amount,
	)
	return balance, nil
}

// transition runs fn in a read-write transaction that also advances the
// ledger height, commits it, and publishes the resulting event. The whole
// transition is re-run when the commit loses a race.
func (l *Ledger) transition(
	ctx context.Context,
	fn func(*database.Txn, uint64) (*ProposalEvent, error),
) (*ProposalEvent, error) {
	var ret *ProposalEvent
	err := l.withRetry(ctx, func() error {
		txn := l.db.BlobTxn(true)
		defer txn.Release()
		height, err := l.db.IncrementLedgerHeight(txn)
		if err != nil {
			return fmt.Errorf("increment ledger height: %w", err)
		}
		evt, err := fn(txn, height)
		if err != nil {
			return err
		}
		evt.Height = height
		l.commitMutex.Lock()
		defer l.commitMutex.Unlock()
		if err := txn.Commit(); err != nil {
			return err
		}
		if l.metrics != nil {
			l.metrics.height.Set(float64(height))
		}
		if l.config.EventBus != nil {
			// Subscribers get their own copy
			pubEvt := *evt
			pubEvt.Proposal = evt.Proposal.Clone()
			l.config.EventBus.Publish(
				ProposalEventType,
				event.NewEvent(ProposalEventType, pubEvt),
			)
		}
		ret = evt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (l *Ledger) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(
		ctx,
		retry.Config{
			MaxAttempts: l.config.MaxTxnRetries + 1,
			BaseBackoff: txnRetryBaseBackoff,
			MaxBackoff:  txnRetryMaxBackoff,
			Retryable: func(err error) bool {
				if !errors.Is(err, types.ErrTxnConflict) {
					return false
				}
				if l.metrics != nil {
					l.metrics.txnConflicts.Inc()
				}
				return true
			},
		},
		fn,
	)
}

// transfer moves amount from one account to another
func (l *Ledger) transfer(
	from solana.PublicKey,
	to solana.PublicKey,
	amount uint64,
	txn *database.Txn,
) error {
	if amount == 0 {
		return nil
	}
	if err := l.escrow.Debit(from.Bytes(), amount, txn); err != nil {
		if errors.Is(err, database.ErrInsufficientBalance) {
			return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
		}
		return err
	}
	if err := l.escrow.Credit(to.Bytes(), amount, txn); err != nil {
		if errors.Is(err, database.ErrBalanceOverflow) {
			return fmt.Errorf("%w: credit to %s", ErrOverflow, to)
		}
		return err
	}
	return nil
}

func (l *Ledger) getProposal(
	addr solana.PublicKey,
	txn *database.Txn,
) (*Proposal, error) {
	data, err := l.db.ProposalRecord(addr.Bytes(), txn)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
		}
		return nil, err
	}
	return decodeProposal(addr, data)
}

func (l *Ledger) putProposal(p *Proposal, txn *database.Txn) error {
	data, err := encodeProposal(p)
	if err != nil {
		return err
	}
	return l.db.SetProposalRecord(p.Address.Bytes(), data, txn)
}

func (l *Ledger) getVoterRecord(
	addr solana.PublicKey,
	txn *database.Txn,
) (*VoterRecord, error) {
	data, err := l.db.VoterRecord(addr.Bytes(), txn)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, fmt.Errorf("%w: voter record %s", ErrNotFound, addr)
		}
		return nil, err
	}
	return decodeVoterRecord(addr, data)
}

// sameVoterSet compares as sets, so duplicates in supplied are accepted
func sameVoterSet(recorded, supplied []solana.PublicKey) bool {
	recordedSet := make(map[solana.PublicKey]struct{}, len(recorded))
	for _, voter := range recorded {
		recordedSet[voter] = struct{}{}
	}
	suppliedSet := make(map[solana.PublicKey]struct{}, len(supplied))
	for _, voter := range supplied {
		if _, ok := recordedSet[voter]; !ok {
			return false
		}
		suppliedSet[voter] = struct{}{}
	}
	return len(suppliedSet) == len(recordedSet)
}

func (l *Ledger) startSpan(
	ctx context.Context,
	name string,
	attrs ...attribute.KeyValue,
) (context.Context, trace.Span) {
	return l.tracer.Start(
		ctx,
		"ledger."+name,
		trace.WithAttributes(attrs...),
	)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// instrument records the outcome and duration of an operation
func (l *Ledger) instrument(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	if l.metrics == nil {
		return err
	}
	l.metrics.operationDuration.WithLabelValues(operation).
		Observe(time.Since(start).Seconds())
	l.metrics.operationsTotal.WithLabelValues(operation, outcome(err)).Inc()
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrTxnConflict):
		return "conflict"
	case IsRejection(err):
		return "rejected"
	default:
		return "error"
	}
}

// IsRejection reports whether err is a precondition failure of the state
// machine. Rejections are final and must not be retried.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrAlreadyExists,
		ErrInsufficientFunds,
		ErrNotFound,
		ErrProposalClosed,
		ErrAlreadyVoted,
		ErrUnauthorized,
		ErrVoterListMismatch,
		ErrDescriptionRequired,
		ErrDescriptionTooLong,
		ErrTooManyVoters,
		ErrOverflow,
		ErrAirdropDisabled,
		ErrInvalidAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
