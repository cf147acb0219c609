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

package ledger

import (
	"github.com/blinklabs-io/ballot/database"
)

// Escrow holds value per account. All calls take part in the caller's
// transaction.
type Escrow interface {
	Balance(addr []byte, txn *database.Txn) (uint64, error)
	Credit(addr []byte, amount uint64, txn *database.Txn) error
	Debit(addr []byte, amount uint64, txn *database.Txn) error
}

var _ Escrow = (*database.Database)(nil)
