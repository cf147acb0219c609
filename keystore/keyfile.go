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
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/gagliardetto/solana-go"
)

const (
	KeyTypeSigning      = "BallotSigningKey_ed25519"
	KeyTypeVerification = "BallotVerificationKey_ed25519"

	// Valid key files are well under this size
	maxKeyFileSize = 1 << 20
)

// keyFileEnvelope represents the JSON structure of a key file.
type keyFileEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// loadedKey holds the parsed contents of a key file.
type loadedKey struct {
	Type        string
	Description string
	PrivateKey  solana.PrivateKey
	PublicKey   solana.PublicKey
}

// loadSigningKeyFromFile loads a signing key from a file path.
// Returns ErrInsecureFileMode if the file is readable by anyone but its owner.
//
// Permissions are checked on the open handle to avoid a race between the
// check and the read.
func loadSigningKeyFromFile(path string) (*loadedKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()

	if err := checkOpenFilePermissions(f); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	key, err := parseKeyEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	if key.Type != KeyTypeSigning {
		return nil, fmt.Errorf(
			"%w: expected %s, got %s",
			ErrInvalidKeyType,
			KeyTypeSigning,
			key.Type,
		)
	}
	return key, nil
}

// LoadVerificationKey loads a public key from a verification key file.
// Verification keys hold only public data so permissions are not checked.
func LoadVerificationKey(path string) (solana.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf(
			"failed to read key file %q: %w",
			path,
			err,
		)
	}
	key, err := parseKeyEnvelope(data)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf(
			"failed to parse key file %q: %w",
			path,
			err,
		)
	}
	if key.Type != KeyTypeVerification {
		return solana.PublicKey{}, fmt.Errorf(
			"%w: expected %s, got %s",
			ErrInvalidKeyType,
			KeyTypeVerification,
			key.Type,
		)
	}
	return key.PublicKey, nil
}

func parseKeyEnvelope(fileBytes []byte) (*loadedKey, error) {
	var env keyFileEnvelope
	if err := json.Unmarshal(fileBytes, &env); err != nil {
		return nil, fmt.Errorf("could not parse key file envelope: %w", err)
	}
	cborData, err := hex.DecodeString(env.CborHex)
	if err != nil {
		return nil, fmt.Errorf("could not decode key from hex: %w", err)
	}
	var keyBytes []byte
	if _, err := cbor.Decode(cborData, &keyBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key CBOR: %w", err)
	}
	lk := &loadedKey{
		Type:        env.Type,
		Description: env.Description,
	}
	switch env.Type {
	case KeyTypeSigning:
		privateKey, err := decodeSigningKey(keyBytes)
		if err != nil {
			return nil, err
		}
		lk.PrivateKey = privateKey
		lk.PublicKey = privateKey.PublicKey()
	case KeyTypeVerification:
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf(
				"invalid verification key bytes: expected %d, got %d",
				ed25519.PublicKeySize,
				len(keyBytes),
			)
		}
		lk.PublicKey = solana.PublicKeyFromBytes(keyBytes)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidKeyType, env.Type)
	}
	return lk, nil
}

// decodeSigningKey accepts a bare seed or a seed followed by its public key
func decodeSigningKey(keyBytes []byte) (solana.PrivateKey, error) {
	switch len(keyBytes) {
	case ed25519.SeedSize:
		return solana.PrivateKey(ed25519.NewKeyFromSeed(keyBytes)), nil
	case ed25519.PrivateKeySize:
		// Derive the public key from the seed rather than trusting the file
		privateKey := ed25519.NewKeyFromSeed(keyBytes[:ed25519.SeedSize])
		if !ed25519.PublicKey(keyBytes[ed25519.SeedSize:]).Equal(
			privateKey.Public(),
		) {
			return nil, ErrKeyMismatch
		}
		return solana.PrivateKey(privateKey), nil
	default:
		return nil, fmt.Errorf(
			"invalid signing key bytes: expected %d or %d, got %d",
			ed25519.SeedSize,
			ed25519.PrivateKeySize,
			len(keyBytes),
		)
	}
}

func encodeKeyEnvelope(
	keyType string,
	description string,
	keyBytes []byte,
) ([]byte, error) {
	cborData, err := cbor.Encode(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key CBOR: %w", err)
	}
	data, err := json.MarshalIndent(
		keyFileEnvelope{
			Type:        keyType,
			Description: description,
			CborHex:     hex.EncodeToString(cborData),
		},
		"",
		"    ",
	)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// writeKeyFile creates a new key file and refuses to overwrite an existing one
func writeKeyFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrKeyFileExists, path)
		}
		return fmt.Errorf("failed to create key file %q: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("failed to write key file %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write key file %q: %w", path, err)
	}
	return nil
}
