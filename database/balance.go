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

package database

import (
	"errors"
	"fmt"
	"math"

	"github.com/blinklabs-io/ballot/database/types"
)

// Balance returns the balance of an account. Unknown accounts hold 0.
func (d *Database) Balance(addr []byte, txn *Txn) (uint64, error) {
	data, err := d.getRecord(types.BalanceBlobKey(addr), txn)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	// Zero balances are deleted, so an empty record is corrupt too
	if len(data) == 0 {
		return 0, errors.New("corrupt balance record: empty")
	}
	balance, err := types.DecodeUint64(data)
	if err != nil {
		return 0, fmt.Errorf("corrupt balance record: %w", err)
	}
	return balance, nil
}

func (d *Database) setBalance(addr []byte, balance uint64, txn *Txn) error {
	if balance == 0 {
		blobTxn, err := d.blobTxn(txn)
		if err != nil {
			return err
		}
		return d.blob.Delete(blobTxn, types.BalanceBlobKey(addr))
	}
	return d.setRecord(
		types.BalanceBlobKey(addr),
		types.EncodeUint64(balance),
		txn,
	)
}

// Credit adds amount to an account balance
func (d *Database) Credit(addr []byte, amount uint64, txn *Txn) error {
	if amount == 0 {
		return nil
	}
	balance, err := d.Balance(addr, txn)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	return d.setBalance(addr, balance+amount, txn)
}

// Debit removes amount from an account balance
func (d *Database) Debit(addr []byte, amount uint64, txn *Txn) error {
	if amount == 0 {
		return nil
	}
	balance, err := d.Balance(addr, txn)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf(
			"%w: balance %d, need %d",
			ErrInsufficientBalance,
			balance,
			amount,
		)
	}
	return d.setBalance(addr, balance-amount, txn)
}
