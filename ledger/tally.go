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

// Tally computes the result and the vote percentages from the final counts.
// Both percentages are 0 when no votes were cast. Otherwise the against
// percentage is the complement of the for percentage, so they sum to 100.
func Tally(votesFor, votesAgainst uint64) (Result, float64, float64) {
	var result Result
	switch {
	case votesFor > votesAgainst:
		result = ResultFor
	case votesFor < votesAgainst:
		result = ResultAgainst
	default:
		result = ResultTie
	}
	if votesFor == 0 && votesAgainst == 0 {
		return result, 0, 0
	}
	total := float64(votesFor) + float64(votesAgainst)
	forPct := float64(votesFor) * 100 / total
	return result, forPct, 100 - forPct
}
