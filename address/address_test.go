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

package address_test

import (
	"testing"

	"github.com/blinklabs-io/ballot/address"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentity(t *testing.T) solana.PublicKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func TestProposalAddressDeterministic(t *testing.T) {
	creator := newIdentity(t)
	addr1, err := address.ProposalAddress(address.DefaultProgramID, creator)
	require.NoError(t, err)
	addr2, err := address.ProposalAddress(address.DefaultProgramID, creator)
	require.NoError(t, err)
	assert.Equal(t, addr1, addr2)
	assert.NotEqual(t, creator, addr1)

	other, err := address.ProposalAddress(address.DefaultProgramID, newIdentity(t))
	require.NoError(t, err)
	assert.NotEqual(t, addr1, other)

	// The program ID namespaces addresses
	otherProgram, err := address.ProposalAddress(newIdentity(t), creator)
	require.NoError(t, err)
	assert.NotEqual(t, addr1, otherProgram)
}

func TestAddressVectors(t *testing.T) {
	creator := solana.MustPublicKeyFromBase58(
		"Vote111111111111111111111111111111111111111",
	)
	voter := solana.MustPublicKeyFromBase58(
		"Stake11111111111111111111111111111111111111",
	)
	proposal, err := address.ProposalAddress(address.DefaultProgramID, creator)
	require.NoError(t, err)
	assert.Equal(
		t,
		"AQBSvzYQtttFJ56nz4KUD7b2mdpFvxthnKBxKdYemMb8",
		proposal.String(),
	)
	// Bump 255 lands on the curve here, so this one is found at 254
	rec, err := address.VoterRecordAddress(address.DefaultProgramID, proposal, voter)
	require.NoError(t, err)
	assert.Equal(
		t,
		"4FtiJQZo669ZBCpb1kXvMbTD5qkmXMxDbTBXKkcZLAFo",
		rec.String(),
	)
}

func TestVoterRecordAddress(t *testing.T) {
	proposal, err := address.ProposalAddress(address.DefaultProgramID, newIdentity(t))
	require.NoError(t, err)
	voter1 := newIdentity(t)
	voter2 := newIdentity(t)

	rec1, err := address.VoterRecordAddress(address.DefaultProgramID, proposal, voter1)
	require.NoError(t, err)
	again, err := address.VoterRecordAddress(address.DefaultProgramID, proposal, voter1)
	require.NoError(t, err)
	assert.Equal(t, rec1, again)

	rec2, err := address.VoterRecordAddress(address.DefaultProgramID, proposal, voter2)
	require.NoError(t, err)
	assert.NotEqual(t, rec1, rec2)

	otherProposal, err := address.ProposalAddress(address.DefaultProgramID, newIdentity(t))
	require.NoError(t, err)
	rec3, err := address.VoterRecordAddress(address.DefaultProgramID, otherProposal, voter1)
	require.NoError(t, err)
	assert.NotEqual(t, rec1, rec3)
}

func TestParse(t *testing.T) {
	identity := newIdentity(t)
	parsed, err := address.Parse(identity.String())
	require.NoError(t, err)
	assert.Equal(t, identity, parsed)

	for _, bad := range []string{"", "not-base58!", "abc"} {
		_, err := address.Parse(bad)
		require.ErrorIs(t, err, address.ErrInvalidAddress, bad)
	}
	assert.Equal(
		t,
		"9gvLmeAkDQzGjoLoJCCbEizicBYATkJSfD6pmVJzGKWS",
		address.DefaultProgramID.String(),
	)
}
