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

package keystore

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	skeyPath := filepath.Join(tmpDir, "ballot.skey")
	vkeyPath := filepath.Join(tmpDir, "ballot.vkey")

	pubKey, err := GenerateKeyFiles(skeyPath, vkeyPath)
	require.NoError(t, err)

	ks := NewKeyStore(KeyStoreConfig{SigningKeyPath: skeyPath})
	assert.False(t, ks.IsLoaded())
	require.NoError(t, ks.LoadFromFile())
	assert.True(t, ks.IsLoaded())
	require.ErrorIs(t, ks.LoadFromFile(), ErrAlreadyLoaded)

	loaded, err := ks.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, pubKey, loaded)

	vkey, err := LoadVerificationKey(vkeyPath)
	require.NoError(t, err)
	assert.Equal(t, pubKey, vkey)

	signer := ks.Signer()
	require.NotNil(t, signer)
	assert.Equal(t, pubKey, signer.PublicKey())
	payload := []byte("ballot/v1\nvote\ntest")
	sig, err := signer.Sign(payload)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pubKey.Bytes(), payload, sig[:]))
}

func TestGenerateRefusesOverwrite(t *testing.T) {
	tmpDir := t.TempDir()
	skeyPath := filepath.Join(tmpDir, "ballot.skey")
	original, err := GenerateKeyFiles(skeyPath, "")
	require.NoError(t, err)

	_, err = GenerateKeyFiles(skeyPath, "")
	require.ErrorIs(t, err, ErrKeyFileExists)

	ks := NewKeyStore(KeyStoreConfig{SigningKeyPath: skeyPath})
	require.NoError(t, ks.LoadFromFile())
	loaded, err := ks.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestNotLoaded(t *testing.T) {
	ks := NewKeyStore(KeyStoreConfig{})
	_, err := ks.PublicKey()
	require.ErrorIs(t, err, ErrKeyNotLoaded)
	assert.Nil(t, ks.Signer())
	require.Error(t, ks.LoadFromFile())
}

func writeEnvelope(
	t *testing.T,
	keyType string,
	keyBytes []byte,
) string {
	t.Helper()
	data, err := encodeKeyEnvelope(keyType, "", keyBytes)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "test.key")
	require.NoError(t, writeKeyFile(path, data, 0o600))
	return path
}

func TestLoadSeedOnlyKey(t *testing.T) {
	privateKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	path := writeEnvelope(t, KeyTypeSigning, privateKey[:ed25519.SeedSize])

	ks := NewKeyStore(KeyStoreConfig{SigningKeyPath: path})
	require.NoError(t, ks.LoadFromFile())
	loaded, err := ks.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, privateKey.PublicKey(), loaded)
}

func TestLoadInvalidKeys(t *testing.T) {
	privateKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	other, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	mismatched := append(
		append([]byte{}, privateKey[:ed25519.SeedSize]...),
		other[ed25519.SeedSize:]...,
	)

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{
			name:    "mismatched public key",
			path:    writeEnvelope(t, KeyTypeSigning, mismatched),
			wantErr: ErrKeyMismatch,
		},
		{
			name:    "verification key",
			path:    writeEnvelope(t, KeyTypeVerification, privateKey[ed25519.SeedSize:]),
			wantErr: ErrInvalidKeyType,
		},
		{
			name:    "unknown type",
			path:    writeEnvelope(t, "VrfSigningKey_PraosVRF", privateKey),
			wantErr: ErrInvalidKeyType,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ks := NewKeyStore(KeyStoreConfig{SigningKeyPath: test.path})
			require.ErrorIs(t, ks.LoadFromFile(), test.wantErr)
			assert.False(t, ks.IsLoaded())
		})
	}

	t.Run("short key", func(t *testing.T) {
		path := writeEnvelope(t, KeyTypeSigning, []byte{1, 2, 3})
		ks := NewKeyStore(KeyStoreConfig{SigningKeyPath: path})
		require.ErrorContains(t, ks.LoadFromFile(), "invalid signing key bytes")
	})

	t.Run("not json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "garbage.skey")
		require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
		ks := NewKeyStore(KeyStoreConfig{SigningKeyPath: path})
		require.ErrorContains(t, ks.LoadFromFile(), "envelope")
	})
}

func TestInsecureFileModeUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("see TestCheckFilePermissionsWindows")
	}
	tmpDir := t.TempDir()
	skeyPath := filepath.Join(tmpDir, "ballot.skey")
	_, err := GenerateKeyFiles(skeyPath, "")
	require.NoError(t, err)
	// Chmod after creation to avoid umask interference
	require.NoError(t, os.Chmod(skeyPath, 0o644))

	ks := NewKeyStore(KeyStoreConfig{SigningKeyPath: skeyPath})
	require.ErrorIs(t, ks.LoadFromFile(), ErrInsecureFileMode)
}

func TestDirectoryKeyPathUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directories cannot be opened as files on windows")
	}
	ks := NewKeyStore(KeyStoreConfig{SigningKeyPath: t.TempDir()})
	err := ks.LoadFromFile()
	require.ErrorIs(t, err, ErrInsecureFileMode)
	assert.ErrorContains(t, err, "not a regular file")
}
