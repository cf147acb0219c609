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

package ledger_test

import (
	"testing"

	"github.com/blinklabs-io/ballot/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T, count int) []solana.PublicKey {
	t.Helper()
	ret := make([]solana.PublicKey, 0, count)
	for range count {
		key, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		ret = append(ret, key.PublicKey())
	}
	return ret
}

func TestPlanPayoutsConservesPool(t *testing.T) {
	creator := testKeys(t, 1)[0]
	voters := testKeys(t, 7)
	for pool := range uint64(40) {
		for count := range len(voters) + 1 {
			plan := ledger.PlanPayouts(pool, voters[:count], creator)
			var total, refund uint64
			var shares int
			for _, payout := range plan {
				assert.Positive(t, payout.Amount)
				total += payout.Amount
				switch payout.Kind {
				case ledger.PayoutKindReward:
					shares++
				case ledger.PayoutKindRefund:
					assert.Equal(t, creator, payout.Recipient)
					refund += payout.Amount
				}
			}
			require.Equal(t, pool, total, "pool=%d voters=%d", pool, count)
			if count == 0 {
				assert.Equal(t, pool, refund)
				continue
			}
			assert.Equal(t, pool%uint64(count), refund)
			if pool >= uint64(count) {
				assert.Equal(t, count, shares)
			} else {
				assert.Zero(t, shares)
			}
		}
	}
}

func TestPlanPayoutsEvenSplit(t *testing.T) {
	creator := testKeys(t, 1)[0]
	voters := testKeys(t, 3)
	plan := ledger.PlanPayouts(3_000_000_000, voters, creator)
	require.Len(t, plan, 3)
	for i, payout := range plan {
		assert.Equal(t, voters[i], payout.Recipient)
		assert.Equal(t, ledger.PayoutKindReward, payout.Kind)
		assert.Equal(t, uint64(1_000_000_000), payout.Amount)
	}
}

func TestPlanPayoutsRemainder(t *testing.T) {
	creator := testKeys(t, 1)[0]
	voters := testKeys(t, 3)
	plan := ledger.PlanPayouts(10, voters, creator)
	require.Len(t, plan, 4)
	assert.Equal(
		t,
		ledger.Payout{
			Recipient: creator,
			Kind:      ledger.PayoutKindRefund,
			Amount:    1,
		},
		plan[3],
	)
	assert.Nil(t, ledger.PlanPayouts(0, voters, creator))
}
