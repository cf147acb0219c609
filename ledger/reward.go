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
	"github.com/gagliardetto/solana-go"
)

// PayoutKind identifies why a payout was made
type PayoutKind string

const (
	PayoutKindReward PayoutKind = "reward"
	PayoutKindRefund PayoutKind = "refund"
)

// Payout is a transfer out of a proposal's reward pool at finalization
type Payout struct {
	Recipient solana.PublicKey
	Kind      PayoutKind
	Amount    uint64
}

// PlanPayouts splits pool into equal floor shares, one per voter, and
// refunds the remainder to the creator. With no voters the whole pool is
// refunded. The amounts always sum to pool.
func PlanPayouts(
	pool uint64,
	voters []solana.PublicKey,
	creator solana.PublicKey,
) []Payout {
	if pool == 0 {
		return nil
	}
	if len(voters) == 0 {
		return []Payout{
			{Recipient: creator, Kind: PayoutKindRefund, Amount: pool},
		}
	}
	count := uint64(len(voters))
	share := pool / count
	remainder := pool % count
	ret := make([]Payout, 0, len(voters)+1)
	if share > 0 {
		for _, voter := range voters {
			ret = append(ret, Payout{
				Recipient: voter,
				Kind:      PayoutKindReward,
				Amount:    share,
			})
		}
	}
	if remainder > 0 {
		ret = append(ret, Payout{
			Recipient: creator,
			Kind:      PayoutKindRefund,
			Amount:    remainder,
		})
	}
	return ret
}
