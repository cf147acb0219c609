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

package database_test

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/blinklabs-io/ballot/database"
	"github.com/blinklabs-io/ballot/database/models"
	"github.com/blinklabs-io/ballot/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: ""})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	return db
}

func testAddr(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestProposalDirectoryOrder(t *testing.T) {
	db := setupTestDB(t)
	for i, b := range []byte{0x30, 0x10, 0x20} {
		err := db.BlobTxn(true).Do(func(txn *database.Txn) error {
			seq, err := db.CreateProposalRecord(testAddr(b), []byte{b}, txn)
			require.Equal(t, uint64(i), seq)
			return err
		})
		require.NoError(t, err)
	}
	txn := db.BlobTxn(false)
	defer txn.Release()
	addrs, err := db.ProposalAddresses(txn)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{testAddr(0x30), testAddr(0x10), testAddr(0x20)}, addrs)
	data, err := db.ProposalRecord(testAddr(0x10), txn)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10}, data)
}

func TestCreateRecordExists(t *testing.T) {
	db := setupTestDB(t)
	txn := db.BlobTxn(true)
	_, err := db.CreateProposalRecord(testAddr(1), []byte{1}, txn)
	require.NoError(t, err)
	_, err = db.CreateProposalRecord(testAddr(1), []byte{2}, txn)
	require.ErrorIs(t, err, database.ErrRecordExists)
	require.NoError(t, db.CreateVoterRecord(testAddr(2), []byte{3}, txn))
	require.ErrorIs(
		t,
		db.CreateVoterRecord(testAddr(2), []byte{4}, txn),
		database.ErrRecordExists,
	)
	require.NoError(t, txn.Commit())

	txn = db.BlobTxn(false)
	defer txn.Release()
	data, err := db.VoterRecord(testAddr(2), txn)
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, data)
	_, err = db.VoterRecord(testAddr(3), txn)
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestConcurrentCreateConflicts(t *testing.T) {
	db := setupTestDB(t)
	txn1 := db.BlobTxn(true)
	txn2 := db.BlobTxn(true)
	require.NoError(t, db.CreateVoterRecord(testAddr(1), []byte{1}, txn1))
	require.NoError(t, db.CreateVoterRecord(testAddr(1), []byte{2}, txn2))
	require.NoError(t, txn1.Commit())
	require.ErrorIs(t, txn2.Commit(), types.ErrTxnConflict)
}

func TestBalances(t *testing.T) {
	db := setupTestDB(t)
	txn := db.BlobTxn(true)
	defer txn.Release()
	acct := testAddr(9)

	balance, err := db.Balance(acct, txn)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)

	require.NoError(t, db.Credit(acct, 100, txn))
	require.NoError(t, db.Debit(acct, 40, txn))
	balance, err = db.Balance(acct, txn)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), balance)

	require.ErrorIs(t, db.Debit(acct, 61, txn), database.ErrInsufficientBalance)
	require.ErrorIs(t, db.Credit(acct, math.MaxUint64, txn), database.ErrBalanceOverflow)

	// Draining an account removes it
	require.NoError(t, db.Debit(acct, 60, txn))
	_, err = db.Blob().Get(txn.Blob(), types.BalanceBlobKey(acct))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestNilTxn(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Balance(testAddr(1), nil)
	require.ErrorIs(t, err, types.ErrNilTxn)
	// A metadata-only transaction has no ledger side
	txn := db.MetadataTxn(false)
	defer txn.Release()
	_, err = db.ProposalRecord(testAddr(1), txn)
	require.ErrorIs(t, err, types.ErrBlobStoreUnavailable)
}

func TestLedgerHeight(t *testing.T) {
	db := setupTestDB(t)
	for i := uint64(1); i <= 3; i++ {
		err := db.BlobTxn(true).Do(func(txn *database.Txn) error {
			height, err := db.IncrementLedgerHeight(txn)
			assert.Equal(t, i, height)
			return err
		})
		require.NoError(t, err)
	}
	txn := db.BlobTxn(false)
	defer txn.Release()
	height, err := db.LedgerHeight(txn)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), height)
}

func TestIndexHeightMismatch(t *testing.T) {
	dataDir := t.TempDir()
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	require.NoError(t, db.BlobTxn(true).Do(func(txn *database.Txn) error {
		_, err := db.IncrementLedgerHeight(txn)
		return err
	}))
	require.NoError(t, db.Close())

	// The index never saw the transition
	db, err = database.New(&database.Config{DataDir: dataDir})
	var heightErr database.IndexHeightError
	require.ErrorAs(t, err, &heightErr)
	assert.Equal(t, uint64(0), heightErr.IndexHeight)
	assert.Equal(t, uint64(1), heightErr.LedgerHeight)
	require.NotNil(t, db)

	require.NoError(t, db.SetIndexHeight(1, nil))
	require.NoError(t, db.Close())
	db, err = database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestIndexWrappers(t *testing.T) {
	db := setupTestDB(t)
	txn := db.MetadataTxn(true)
	require.NoError(t, db.Metadata().SetProposal(
		&models.Proposal{
			Address:     "addr1",
			Creator:     "creator1",
			Description: "test",
			OnGoing:     true,
			AddedHeight: 1,
		},
		txn.Metadata(),
	))
	require.NoError(t, db.Metadata().SetVote(
		&models.Vote{
			ProposalAddress: "addr1",
			Voter:           "voter1",
			VoterRecord:     "rec1",
			Vote:            true,
			AddedHeight:     2,
		},
		txn.Metadata(),
	))
	require.NoError(t, db.SetIndexHeight(2, txn))
	require.NoError(t, txn.Commit())

	proposal, err := db.GetProposal("addr1", nil)
	require.NoError(t, err)
	assert.Equal(t, "test", proposal.Description)
	_, err = db.GetProposal("missing", nil)
	require.ErrorIs(t, err, models.ErrProposalNotFound)

	proposals, err := db.GetProposals(models.ProposalFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, proposals, 1)
	votes, err := db.GetVotesByProposal("addr1", nil)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
	votes, err = db.GetVotesByVoter("voter1", nil)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
	payouts, err := db.GetPayouts("addr1", nil)
	require.NoError(t, err)
	assert.Empty(t, payouts)

	require.NoError(t, db.ResetIndex(nil))
	height, err := db.IndexHeight(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), height)
	proposals, err = db.GetProposals(models.ProposalFilter{}, nil)
	require.NoError(t, err)
	assert.Empty(t, proposals)
}

func TestTxnDoRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	errBoom := errors.New("boom")
	err := db.BlobTxn(true).Do(func(txn *database.Txn) error {
		require.NoError(t, db.Credit(testAddr(4), 10, txn))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	txn := db.BlobTxn(false)
	defer txn.Release()
	balance, err := db.Balance(testAddr(4), txn)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)
}

func TestTxnStoreSides(t *testing.T) {
	db := setupTestDB(t)
	blobTxn := db.BlobTxn(true)
	assert.NotNil(t, blobTxn.Blob())
	assert.Nil(t, blobTxn.Metadata())
	require.NoError(t, blobTxn.Commit())
	// A finished transaction ignores further calls
	require.NoError(t, blobTxn.Commit())
	require.NoError(t, blobTxn.Rollback())

	metadataTxn := db.MetadataTxn(false)
	assert.Nil(t, metadataTxn.Blob())
	assert.NotNil(t, metadataTxn.Metadata())
	require.NoError(t, metadataTxn.Commit())
}
