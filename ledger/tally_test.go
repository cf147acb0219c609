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
	"github.com/stretchr/testify/assert"
)

func TestTallyResult(t *testing.T) {
	testDefs := []struct {
		votesFor     uint64
		votesAgainst uint64
		expected     ledger.Result
	}{
		{votesFor: 2, votesAgainst: 1, expected: ledger.ResultFor},
		{votesFor: 1, votesAgainst: 1, expected: ledger.ResultTie},
		{votesFor: 1, votesAgainst: 2, expected: ledger.ResultAgainst},
		{votesFor: 0, votesAgainst: 0, expected: ledger.ResultTie},
		{votesFor: 0, votesAgainst: 5, expected: ledger.ResultAgainst},
	}
	for _, testDef := range testDefs {
		result, _, _ := ledger.Tally(testDef.votesFor, testDef.votesAgainst)
		assert.Equal(
			t,
			testDef.expected,
			result,
			"for=%d against=%d",
			testDef.votesFor,
			testDef.votesAgainst,
		)
	}
}

func TestTallyPercentages(t *testing.T) {
	_, forPct, againstPct := ledger.Tally(0, 0)
	assert.Zero(t, forPct)
	assert.Zero(t, againstPct)

	_, forPct, againstPct = ledger.Tally(2, 1)
	assert.InDelta(t, 66.666, forPct, 0.01)
	assert.InDelta(t, 33.333, againstPct, 0.01)

	// The percentages are complementary for every non-empty tally
	for votesFor := range uint64(12) {
		for votesAgainst := range uint64(12) {
			if votesFor+votesAgainst == 0 {
				continue
			}
			_, forPct, againstPct := ledger.Tally(votesFor, votesAgainst)
			assert.InDelta(t, 100.0, forPct+againstPct, 0.1)
			assert.GreaterOrEqual(t, forPct, 0.0)
			assert.GreaterOrEqual(t, againstPct, 0.0)
		}
	}
}

func TestResultString(t *testing.T) {
	for _, result := range []ledger.Result{
		ledger.ResultNone,
		ledger.ResultFor,
		ledger.ResultAgainst,
		ledger.ResultTie,
	} {
		parsed, err := ledger.ParseResult(result.String())
		assert.NoError(t, err)
		assert.Equal(t, result, parsed)
	}
	_, err := ledger.ParseResult("Maybe")
	assert.Error(t, err)
}
