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
	"github.com/blinklabs-io/ballot/api"
	"github.com/blinklabs-io/ballot/client"
	"github.com/spf13/cobra"
)

func accountCommand() *cobra.Command {
	flags := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Query and fund accounts",
	}
	flags.addServerFlag(cmd)
	cmd.AddCommand(
		accountBalanceCommand(flags),
		accountAirdropCommand(flags),
		accountVotesCommand(flags),
	)
	return cmd
}

func accountBalanceCommand(flags *clientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <account>",
		Short: "Show an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := parseAddressArg("account", args[0])
			if err != nil {
				return err
			}
			c, err := flags.client(cmd)
			if err != nil {
				return err
			}
			balance, err := c.Balance(cmd.Context(), account)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.BalanceResponse{
				Address: account.String(),
				Balance: balance,
			})
		},
	}
	return cmd
}

func accountAirdropCommand(flags *clientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "airdrop <account> <amount>",
		Short: "Credit an account (dev mode only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := parseAddressArg("account", args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			c, err := flags.client(cmd)
			if err != nil {
				return err
			}
			balance, err := c.Airdrop(cmd.Context(), account, amount)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.BalanceResponse{
				Address: account.String(),
				Balance: balance,
			})
		},
	}
	return cmd
}

func accountVotesCommand(flags *clientFlags) *cobra.Command {
	var opts client.ListOptions
	cmd := &cobra.Command{
		Use:   "votes <account>",
		Short: "List the votes cast by an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := parseAddressArg("account", args[0])
			if err != nil {
				return err
			}
			c, err := flags.client(cmd)
			if err != nil {
				return err
			}
			ret, err := c.AccountVotes(cmd.Context(), account, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ret)
		},
	}
	addListFlags(cmd, &opts)
	return cmd
}
