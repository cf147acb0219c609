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

// Package indexer projects ledger events into the metadata store, which
// serves queries the ledger cannot answer by address alone.
package indexer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/ballot/database"
	"github.com/blinklabs-io/ballot/database/models"
	"github.com/blinklabs-io/ballot/database/types"
	"github.com/blinklabs-io/ballot/event"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultCatchUpInterval is how often the index height is compared with
// the ledger when no events arrive
const DefaultCatchUpInterval = 10 * time.Second

type IndexerConfig struct {
	Database     *database.Database
	Ledger       *ledger.Ledger
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Clock        clockwork.Clock
	// CatchUpInterval of 0 uses DefaultCatchUpInterval and a negative
	// value disables the check
	CatchUpInterval time.Duration
}

type Indexer struct {
	config  IndexerConfig
	db      *database.Database
	logger  *slog.Logger
	metrics *indexerMetrics
	subId   event.EventSubscriberId
	stopCh  chan struct{}
	wg      sync.WaitGroup
	// mutex serializes event handling and reindexing
	mutex sync.Mutex
	// lagHeight is the index height seen behind the ledger at the last
	// catch-up check
	lagHeight *uint64
}

func New(cfg IndexerConfig) (*Indexer, error) {
	if cfg.Database == nil {
		return nil, errors.New("database is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.CatchUpInterval == 0 {
		cfg.CatchUpInterval = DefaultCatchUpInterval
	}
	i := &Indexer{
		config: cfg,
		db:     cfg.Database,
		logger: cfg.Logger,
	}
	if cfg.PromRegistry != nil {
		i.metrics = &indexerMetrics{}
		i.metrics.init(cfg.PromRegistry)
	}
	return i, nil
}

// Start subscribes to ledger events
func (i *Indexer) Start() error {
	if i.config.EventBus == nil {
		return errors.New("event bus is required")
	}
	i.subId = i.config.EventBus.SubscribeFunc(
		ledger.ProposalEventType,
		i.handleEvent,
	)
	if i.subId == 0 {
		return errors.New("event bus is stopped")
	}
	if i.config.CatchUpInterval > 0 {
		i.stopCh = make(chan struct{})
		i.wg.Add(1)
		go i.runCatchUp(i.stopCh)
	}
	return nil
}

// Stop unsubscribes from ledger events
func (i *Indexer) Stop() {
	if i.subId != 0 && i.config.EventBus != nil {
		i.config.EventBus.Unsubscribe(ledger.ProposalEventType, i.subId)
		i.subId = 0
	}
	if i.stopCh != nil {
		close(i.stopCh)
		i.stopCh = nil
	}
	i.wg.Wait()
}

func (i *Indexer) runCatchUp(stop <-chan struct{}) {
	defer i.wg.Done()
	ticker := i.config.Clock.NewTicker(i.config.CatchUpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if _, err := i.CatchUp(); err != nil {
				i.logger.Error(
					"failed to catch up with ledger",
					"component", "indexer",
					"error", err,
				)
			}
		}
	}
}

// CatchUp rebuilds the index when it has been behind the ledger at the same
// height for two consecutive calls. That only happens when the event for
// the last transition was lost, since a later event would reveal the gap.
// It reports whether the index was rebuilt.
func (i *Indexer) CatchUp() (bool, error) {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	ledgerHeight, err := i.config.Ledger.Height()
	if err != nil {
		return false, fmt.Errorf("get ledger height: %w", err)
	}
	indexHeight, err := i.db.IndexHeight(nil)
	if err != nil {
		return false, fmt.Errorf("get index height: %w", err)
	}
	if indexHeight >= ledgerHeight {
		i.lagHeight = nil
		return false, nil
	}
	if i.lagHeight == nil || *i.lagHeight != indexHeight {
		// Events may still be in flight
		i.lagHeight = &indexHeight
		return false, nil
	}
	i.logger.Warn(
		"index stalled behind ledger, rebuilding index",
		"component", "indexer",
		"index_height", indexHeight,
		"ledger_height", ledgerHeight,
	)
	if i.metrics != nil {
		i.metrics.gapsTotal.Inc()
	}
	i.lagHeight = nil
	if err := i.reindex(); err != nil {
		return false, err
	}
	return true, nil
}

func (i *Indexer) handleEvent(evt event.Event) {
	proposalEvt, ok := evt.Data.(ledger.ProposalEvent)
	if !ok {
		i.logger.Error(
			fmt.Sprintf("unexpected event data type: %T", evt.Data),
			"component", "indexer",
		)
		return
	}
	if err := i.apply(proposalEvt); err != nil {
		i.logger.Error(
			"failed to index ledger event",
			"component", "indexer",
			"height", proposalEvt.Height,
			"action", string(proposalEvt.Action),
			"error", err,
		)
	}
}

// apply indexes one event. A gap in heights means events were missed, and
// the index is rebuilt from the ledger instead.
func (i *Indexer) apply(evt ledger.ProposalEvent) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	txn := i.db.MetadataTxn(true)
	defer txn.Release()
	indexHeight, err := i.db.IndexHeight(txn)
	if err != nil {
		return fmt.Errorf("get index height: %w", err)
	}
	if evt.Height <= indexHeight {
		return nil
	}
	if evt.Height != indexHeight+1 {
		i.logger.Warn(
			"gap in ledger events, rebuilding index",
			"component", "indexer",
			"index_height", indexHeight,
			"event_height", evt.Height,
		)
		if i.metrics != nil {
			i.metrics.gapsTotal.Inc()
		}
		if err := txn.Rollback(); err != nil {
			return err
		}
		return i.reindex()
	}
	if err := i.applyEvent(evt, txn); err != nil {
		return err
	}
	if err := i.db.SetIndexHeight(evt.Height, txn); err != nil {
		return fmt.Errorf("set index height: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	if i.metrics != nil {
		i.metrics.height.Set(float64(evt.Height))
		i.metrics.eventsTotal.WithLabelValues(string(evt.Action)).Inc()
	}
	return nil
}

func (i *Indexer) applyEvent(
	evt ledger.ProposalEvent,
	txn *database.Txn,
) error {
	if evt.Proposal == nil {
		return fmt.Errorf("event at height %d has no proposal", evt.Height)
	}
	if err := i.db.SetProposal(
		proposalModel(evt.Proposal, evt.Sequence),
		txn,
	); err != nil {
		return err
	}
	switch evt.Action {
	case ledger.ProposalActionCreated:
		return nil
	case ledger.ProposalActionVoted:
		if evt.VoterRecord == nil {
			return fmt.Errorf(
				"vote event at height %d has no voter record",
				evt.Height,
			)
		}
		return i.db.SetVote(voteModel(evt.VoterRecord), txn)
	case ledger.ProposalActionFinalized:
		return i.db.SetPayouts(
			payoutModels(evt.Proposal.Address.String(), evt.Payouts, evt.Height),
			txn,
		)
	default:
		return fmt.Errorf("unknown proposal action: %s", evt.Action)
	}
}

// Reindex rebuilds the whole index from the ledger
func (i *Indexer) Reindex() error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.reindex()
}

func (i *Indexer) reindex() error {
	snapshot, err := i.config.Ledger.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot ledger: %w", err)
	}
	txn := i.db.MetadataTxn(true)
	err = txn.Do(func(txn *database.Txn) error {
		if err := i.db.ResetIndex(txn); err != nil {
			return err
		}
		for seq, p := range snapshot.Proposals {
			addr := p.Address.String()
			if err := i.db.SetProposal(
				proposalModel(p, uint64(seq)), //nolint:gosec
				txn,
			); err != nil {
				return err
			}
			for _, rec := range snapshot.VoterRecords[addr] {
				if err := i.db.SetVote(voteModel(rec), txn); err != nil {
					return err
				}
			}
			if p.OnGoing {
				continue
			}
			// The pool only changes at creation and finalization, so the
			// deposit is what was paid out
			plan := ledger.PlanPayouts(p.Deposit, p.Voters, p.Creator)
			if err := i.db.SetPayouts(
				payoutModels(addr, plan, p.UpdatedHeight),
				txn,
			); err != nil {
				return err
			}
		}
		return i.db.SetIndexHeight(snapshot.Height, txn)
	})
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	if i.metrics != nil {
		i.metrics.height.Set(float64(snapshot.Height))
		i.metrics.reindexTotal.Inc()
	}
	i.logger.Info(
		"rebuilt index",
		"component", "indexer",
		"height", snapshot.Height,
		"proposals", len(snapshot.Proposals),
	)
	return nil
}

func proposalModel(p *ledger.Proposal, seq uint64) *models.Proposal {
	ret := &models.Proposal{
		Address:       p.Address.String(),
		Creator:       p.Creator.String(),
		Description:   p.Description,
		Sequence:      seq,
		VotesFor:      p.VotesFor,
		VotesAgainst:  p.VotesAgainst,
		VoterCount:    uint64(len(p.Voters)),
		Deposit:       types.Uint64(p.Deposit),
		RewardPool:    types.Uint64(p.RewardPool),
		OnGoing:       p.OnGoing,
		AddedHeight:   p.CreatedHeight,
		UpdatedHeight: p.UpdatedHeight,
	}
	if !p.OnGoing {
		result := p.Result.String()
		forPct := p.VotesForPercentage
		againstPct := p.VotesAgainstPercentage
		ret.Result = &result
		ret.ForPercentage = &forPct
		ret.AgainstPercentage = &againstPct
	}
	return ret
}

func voteModel(rec *ledger.VoterRecord) *models.Vote {
	return &models.Vote{
		ProposalAddress: rec.Proposal.String(),
		Voter:           rec.Voter.String(),
		VoterRecord:     rec.Address.String(),
		Vote:            rec.Vote,
		AddedHeight:     rec.Height,
	}
}

func payoutModels(
	proposal string,
	payouts []ledger.Payout,
	height uint64,
) []models.Payout {
	ret := make([]models.Payout, 0, len(payouts))
	for _, payout := range payouts {
		ret = append(ret, models.Payout{
			ProposalAddress: proposal,
			Recipient:       payout.Recipient.String(),
			Kind:            string(payout.Kind),
			Amount:          types.Uint64(payout.Amount),
			AddedHeight:     height,
		})
	}
	return ret
}
