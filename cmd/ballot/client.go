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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/blinklabs-io/ballot/address"
	"github.com/blinklabs-io/ballot/client"
	"github.com/blinklabs-io/ballot/internal/config"
	"github.com/blinklabs-io/ballot/keystore"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

type clientFlags struct {
	server  string
	keyFile string
}

func (f *clientFlags) addServerFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(
		&f.server,
		"server",
		"s",
		os.Getenv("BALLOT_SERVER"),
		"API server URL (default derived from the configured API port)",
	)
}

func (f *clientFlags) addKeyFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(
		&f.keyFile,
		"key",
		"k",
		"",
		"path to the signing key file",
	)
	_ = cmd.MarkFlagRequired("key")
}

func (f *clientFlags) client(cmd *cobra.Command) (*client.Client, error) {
	server := f.server
	if server == "" {
		cfg := config.FromContext(cmd.Context())
		if cfg == nil {
			return nil, errors.New("no config found in context")
		}
		if cfg.ApiPort == 0 {
			return nil, errors.New(
				"API port is disabled in config, use --server",
			)
		}
		server = "http://" + net.JoinHostPort(
			"127.0.0.1",
			strconv.FormatUint(uint64(cfg.ApiPort), 10),
		)
	}
	return client.NewClient(server), nil
}

func (f *clientFlags) signer() (keystore.Signer, error) {
	ks := keystore.NewKeyStore(keystore.KeyStoreConfig{
		SigningKeyPath: f.keyFile,
		Logger:         newLogger(os.Stderr),
	})
	if err := ks.LoadFromFile(); err != nil {
		return nil, err
	}
	return ks.Signer(), nil
}

func parseAddressArg(name string, value string) (solana.PublicKey, error) {
	ret, err := address.Parse(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return ret, nil
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func parseAmount(s string) (uint64, error) {
	ret, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if ret == 0 {
		return 0, errors.New("amount must be positive")
	}
	return ret, nil
}
