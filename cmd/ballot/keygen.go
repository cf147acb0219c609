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
	"fmt"

	"github.com/blinklabs-io/ballot/keystore"
	"github.com/spf13/cobra"
)

func keygenCommand() *cobra.Command {
	var skeyPath, vkeyPath string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an account signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pubKey, err := keystore.GenerateKeyFiles(skeyPath, vkeyPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pubKey.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&skeyPath, "signing-key", "account.skey", "output path for the signing key")
	cmd.Flags().StringVar(&vkeyPath, "verification-key", "account.vkey", "output path for the verification key, empty to skip")
	return cmd
}
