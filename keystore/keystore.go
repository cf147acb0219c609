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

// Package keystore manages the Ed25519 keys that authorize proposal
// creation, votes and finalization. Keys are stored in JSON envelope files
// holding the CBOR-encoded key bytes.
package keystore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Common errors returned by KeyStore operations.
var (
	ErrKeyNotLoaded     = errors.New("signing key not loaded")
	ErrAlreadyLoaded    = errors.New("signing key already loaded")
	ErrInsecureFileMode = errors.New("insecure file permissions")
	ErrInvalidKeyType   = errors.New("invalid key type")
	ErrKeyMismatch      = errors.New("public key does not match seed")
	ErrKeyFileExists    = errors.New("key file already exists")
)

// Signer signs request payloads on behalf of an account.
type Signer interface {
	// Sign returns the Ed25519 signature of the payload.
	Sign(payload []byte) (solana.Signature, error)
	// PublicKey returns the account address of the signer.
	PublicKey() solana.PublicKey
}

// KeyStoreConfig holds configuration for the KeyStore.
type KeyStoreConfig struct {
	// SigningKeyPath is the path to the signing key file.
	SigningKeyPath string
	// Logger for keystore events.
	Logger *slog.Logger
}

// KeyStore holds a single account signing key.
type KeyStore struct {
	config     KeyStoreConfig
	logger     *slog.Logger
	mu         sync.RWMutex
	privateKey solana.PrivateKey
}

// NewKeyStore creates a new KeyStore with the given configuration.
func NewKeyStore(config KeyStoreConfig) *KeyStore {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &KeyStore{
		config: config,
		logger: config.Logger.With("component", "keystore"),
	}
}

// LoadFromFile loads the signing key from the configured path.
// Security: Verifies the file is not readable by group or other.
func (ks *KeyStore) LoadFromFile() error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.privateKey != nil {
		return ErrAlreadyLoaded
	}
	key, err := loadSigningKeyFromFile(ks.config.SigningKeyPath)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}
	ks.privateKey = key.PrivateKey
	ks.logger.Debug(
		"signing key loaded",
		"address", key.PublicKey.String(),
	)
	return nil
}

// IsLoaded returns true if the signing key has been loaded.
func (ks *KeyStore) IsLoaded() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.privateKey != nil
}

// PublicKey returns the address of the loaded key.
func (ks *KeyStore) PublicKey() (solana.PublicKey, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.privateKey == nil {
		return solana.PublicKey{}, ErrKeyNotLoaded
	}
	return ks.privateKey.PublicKey(), nil
}

// Signer returns a signer for the loaded key, or nil if no key is loaded.
func (ks *KeyStore) Signer() Signer {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.privateKey == nil {
		return nil
	}
	return NewSigner(ks.privateKey)
}

type privateKeySigner struct {
	privateKey solana.PrivateKey
}

// NewSigner returns a Signer backed by an in-memory private key.
func NewSigner(privateKey solana.PrivateKey) Signer {
	return &privateKeySigner{
		privateKey: append(solana.PrivateKey(nil), privateKey...),
	}
}

func (s *privateKeySigner) Sign(payload []byte) (solana.Signature, error) {
	return s.privateKey.Sign(payload)
}

func (s *privateKeySigner) PublicKey() solana.PublicKey {
	return s.privateKey.PublicKey()
}

// GenerateKeyFiles creates a new signing key and writes it along with its
// verification key. Existing files are never overwritten.
func GenerateKeyFiles(
	signingKeyPath string,
	verificationKeyPath string,
) (solana.PublicKey, error) {
	privateKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf(
			"failed to generate key: %w",
			err,
		)
	}
	if err := WriteKeyFiles(
		privateKey,
		signingKeyPath,
		verificationKeyPath,
	); err != nil {
		return solana.PublicKey{}, err
	}
	return privateKey.PublicKey(), nil
}

// WriteKeyFiles writes an existing private key as a signing key file and,
// when verificationKeyPath is set, a verification key file.
func WriteKeyFiles(
	privateKey solana.PrivateKey,
	signingKeyPath string,
	verificationKeyPath string,
) error {
	skeyData, err := encodeKeyEnvelope(
		KeyTypeSigning,
		"Ballot Signing Key",
		privateKey,
	)
	if err != nil {
		return err
	}
	if err := writeKeyFile(signingKeyPath, skeyData, 0o600); err != nil {
		return err
	}
	if verificationKeyPath == "" {
		return nil
	}
	publicKey := privateKey.PublicKey()
	vkeyData, err := encodeKeyEnvelope(
		KeyTypeVerification,
		"Ballot Verification Key",
		publicKey.Bytes(),
	)
	if err != nil {
		return err
	}
	return writeKeyFile(verificationKeyPath, vkeyData, 0o644)
}
