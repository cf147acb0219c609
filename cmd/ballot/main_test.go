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

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blinklabs-io/ballot/keystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ballot "))
}

func TestListCommand(t *testing.T) {
	out, err := runCommand(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Blob Storage Plugins:")
	assert.Contains(t, out, "badger")
	assert.Contains(t, out, "sqlite")
}

func TestInvalidLogFormat(t *testing.T) {
	_, err := runCommand(t, "--log-format", "xml", "version")
	require.ErrorContains(t, err, "invalid log format")
}

func TestKeygenCommand(t *testing.T) {
	dir := t.TempDir()
	skey := filepath.Join(dir, "account.skey")
	vkey := filepath.Join(dir, "account.vkey")
	out, err := runCommand(
		t,
		"keygen",
		"--signing-key", skey,
		"--verification-key", vkey,
	)
	require.NoError(t, err)

	pubKey, err := keystore.LoadVerificationKey(vkey)
	require.NoError(t, err)
	assert.Equal(t, pubKey.String(), strings.TrimSpace(out))

	_, err = runCommand(t, "keygen", "--signing-key", skey, "--verification-key", "")
	require.ErrorIs(t, err, keystore.ErrKeyFileExists)
}

func TestParseVoteChoice(t *testing.T) {
	for _, s := range []string{"for", "yes"} {
		vote, err := parseVoteChoice(s)
		require.NoError(t, err)
		assert.True(t, vote)
	}
	for _, s := range []string{"against", "no"} {
		vote, err := parseVoteChoice(s)
		require.NoError(t, err)
		assert.False(t, vote)
	}
	_, err := parseVoteChoice("maybe")
	require.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	amount, err := parseAmount("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), amount)
	for _, s := range []string{"0", "-1", "ten", ""} {
		_, err := parseAmount(s)
		assert.Error(t, err, s)
	}
}

func TestProposalArgsValidated(t *testing.T) {
	_, err := runCommand(t, "proposal", "get", "not-an-address", "--server", "http://127.0.0.1:1")
	require.ErrorContains(t, err, "invalid proposal")
}
