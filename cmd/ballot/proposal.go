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

	"github.com/blinklabs-io/ballot/api"
	"github.com/blinklabs-io/ballot/client"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

func proposalCommand() *cobra.Command {
	flags := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "proposal",
		Short: "Create, vote on and query proposals",
	}
	flags.addServerFlag(cmd)
	cmd.AddCommand(
		proposalCreateCommand(flags),
		proposalVoteCommand(flags),
		proposalFinalizeCommand(flags),
		proposalGetCommand(flags),
		proposalListCommand(flags),
		proposalVotesCommand(flags),
		proposalPayoutsCommand(flags),
	)
	return cmd
}

func proposalCreateCommand(flags *clientFlags) *cobra.Command {
	var description string
	var deposit uint64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a proposal and escrow its deposit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client(cmd)
			if err != nil {
				return err
			}
			signer, err := flags.signer()
			if err != nil {
				return err
			}
			p, err := c.CreateProposal(
				cmd.Context(),
				signer,
				description,
				deposit,
			)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	flags.addKeyFlag(cmd)
	cmd.Flags().StringVarP(&description, "description", "d", "", "proposal description")
	cmd.Flags().Uint64Var(&deposit, "deposit", 0, "reward pool deposit")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func parseVoteChoice(s string) (bool, error) {
	switch s {
	case "for", "yes":
		return true, nil
	case "against", "no":
		return false, nil
	}
	return false, fmt.Errorf(
		"invalid vote %q: must be one of for, yes, against, no",
		s,
	)
}

func proposalVoteCommand(flags *clientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vote <proposal> <for|against>",
		Short: "Cast a vote on an open proposal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			proposal, err := parseAddressArg("proposal", args[0])
			if err != nil {
				return err
			}
			vote, err := parseVoteChoice(args[1])
			if err != nil {
				return err
			}
			c, err := flags.client(cmd)
			if err != nil {
				return err
			}
			signer, err := flags.signer()
			if err != nil {
				return err
			}
			p, err := c.Vote(cmd.Context(), signer, proposal, vote)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	flags.addKeyFlag(cmd)
	return cmd
}

func proposalFinalizeCommand(flags *clientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finalize <proposal> [voter...]",
		Short: "Close a proposal and distribute its reward pool",
		Long: "Close a proposal and distribute its reward pool. " +
			"When no voters are given, the voters recorded on the proposal are used.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proposal, err := parseAddressArg("proposal", args[0])
			if err != nil {
				return err
			}
			voters := make([]solana.PublicKey, 0, len(args)-1)
			for _, arg := range args[1:] {
				voter, err := parseAddressArg("voter", arg)
				if err != nil {
					return err
				}
				voters = append(voters, voter)
			}
			c, err := flags.client(cmd)
			if err != nil {
				return err
			}
			signer, err := flags.signer()
			if err != nil {
				return err
			}
			var p *api.ProposalResponse
			if len(voters) == 0 {
				p, err = c.FinalizeWithRecordedVoters(
					cmd.Context(),
					signer,
					proposal,
				)
			} else {
				p, err = c.Finalize(cmd.Context(), signer, proposal, voters)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	flags.addKeyFlag(cmd)
	return cmd
}

func proposalGetCommand(flags *clientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <proposal>",
		Short: "Show a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proposal, err := parseAddressArg("proposal", args[0])
			if err != nil {
				return err
			}
			c, err := flags.client(cmd)
			if err != nil {
				return err
			}
			p, err := c.GetProposal(cmd.Context(), proposal)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	return cmd
}

func addListFlags(cmd *cobra.Command, opts *client.ListOptions) {
	cmd.Flags().IntVar(&opts.Count, "count", 0, "results per page")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "page number")
	cmd.Flags().StringVar(&opts.Order, "order", "", "sort order (asc, desc)")
}

func proposalListCommand(flags *clientFlags) *cobra.Command {
	var opts client.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Creator != "" {
				if _, err := parseAddressArg("creator", opts.Creator); err != nil {
					return err
				}
			}
			c, err := flags.client(cmd)
			if err != nil {
				return err
			}
			ret, err := c.ListProposals(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ret)
		},
	}
	addListFlags(cmd, &opts)
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by status (open, closed)")
	cmd.Flags().StringVar(&opts.Creator, "creator", "", "filter by creator address")
	return cmd
}

func proposalVotesCommand(flags *clientFlags) *cobra.Command {
	var opts client.ListOptions
	cmd := &cobra.Command{
		Use:   "votes <proposal>",
		Short: "List the votes cast on a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proposal, err := parseAddressArg("proposal", args[0])
			if err != nil {
				return err
			}
			c, err := flags.client(cmd)
			if err != nil {
				return err
			}
			ret, err := c.ProposalVotes(cmd.Context(), proposal, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ret)
		},
	}
	addListFlags(cmd, &opts)
	return cmd
}

func proposalPayoutsCommand(flags *clientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payouts <proposal>",
		Short: "List the reward payouts of a finalized proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proposal, err := parseAddressArg("proposal", args[0])
			if err != nil {
				return err
			}
			c, err := flags.client(cmd)
			if err != nil {
				return err
			}
			ret, err := c.Payouts(cmd.Context(), proposal)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ret)
		},
	}
	return cmd
}
