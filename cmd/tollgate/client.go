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
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/blinklabs-io/tollgate/api"
	"github.com/blinklabs-io/tollgate/internal/config"
	"github.com/spf13/cobra"
)

// tokenEnvVar holds the bearer token used by client commands when --token is
// not given
const tokenEnvVar = "TOLLGATE_API_TOKEN"

var clientFlags = struct {
	apiUrl string
	token  string
}{}

func addClientFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVar(&clientFlags.apiUrl, "api-url", "", "base URL of the node API (default derived from config)")
	cmd.PersistentFlags().
		StringVar(&clientFlags.token, "token", "", "bearer token for the node API (default $"+tokenEnvVar+")")
}

// defaultApiUrl points at the API of a node running with cfg
func defaultApiUrl(cfg *config.Config) string {
	host := cfg.BindAddr
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	scheme := "http"
	if cfg.TlsCertFilePath != "" && cfg.TlsKeyFilePath != "" {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.FormatUint(uint64(cfg.ApiPort), 10))
}

func apiClient(cmd *cobra.Command) (*api.Client, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, errors.New("no config found in context")
	}
	apiUrl := clientFlags.apiUrl
	if apiUrl == "" {
		apiUrl = defaultApiUrl(cfg)
	}
	token := clientFlags.token
	if token == "" {
		token = os.Getenv(tokenEnvVar)
	}
	return api.NewClient(apiUrl, api.WithToken(token)), nil
}

func parseProposalID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid proposal ID %q", arg)
	}
	return id, nil
}

func optionalUint(v *uint64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatUint(*v, 10)
}

func statusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the governance configuration of a running node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient(cmd)
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Now:            %d\n", status.Now)
			fmt.Printf("Admin:          %s\n", status.Admin)
			fmt.Printf("Validators:     %s\n", strings.Join(status.Validators, ", "))
			fmt.Printf("Threshold:      %d\n", status.Threshold)
			fmt.Printf("Timelock delay: %ds\n", status.TimelockDelay)
			fmt.Printf("Targets:        %s\n", strings.Join(status.Targets, ", "))
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}

func proposalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proposal",
		Short: "Upgrade proposal commands",
	}
	addClientFlags(cmd)

	cmd.AddCommand(proposalListCommand())
	cmd.AddCommand(proposalShowCommand())
	cmd.AddCommand(proposalCreateCommand())
	cmd.AddCommand(proposalActionCommand("approve", "Approve a proposal"))
	cmd.AddCommand(proposalActionCommand("execute", "Execute a proposal whose delay has passed"))
	cmd.AddCommand(proposalActionCommand("cancel", "Cancel a proposal"))

	return cmd
}

func proposalListCommand() *cobra.Command {
	var target string
	var pending bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient(cmd)
			if err != nil {
				return err
			}
			proposals, err := client.ListProposals(cmd.Context(), target, pending, limit)
			if err != nil {
				return err
			}
			if len(proposals) == 0 {
				fmt.Println("No proposals.")
				return nil
			}
			fmt.Printf(
				"%-6s  %-16s  %-24s  %-7s  %-10s  %-9s  %s\n",
				"ID",
				"TARGET",
				"CODE",
				"VERSION",
				"STATE",
				"APPROVALS",
				"ETA",
			)
			for _, p := range proposals {
				fmt.Printf(
					"%-6d  %-16s  %-24s  %-7d  %-10s  %-9d  %s\n",
					p.ID,
					p.Target,
					p.CodeRef,
					p.TargetVersion,
					p.State,
					len(p.Approvals),
					optionalUint(p.Eta),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "only list proposals for this target")
	cmd.Flags().BoolVar(&pending, "pending", false, "only list proposals that are not finished")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of proposals to list")
	return cmd
}

func printProposal(p *api.ProposalResponse) {
	fmt.Printf("ID:             %d\n", p.ID)
	fmt.Printf("Target:         %s\n", p.Target)
	fmt.Printf("Code:           %s\n", p.CodeRef)
	fmt.Printf("Target version: %d\n", p.TargetVersion)
	if p.Tag != "" {
		fmt.Printf("Tag:            %s\n", p.Tag)
	}
	fmt.Printf("Proposer:       %s\n", p.Proposer)
	fmt.Printf("Proposed at:    %d\n", p.ProposedAt)
	fmt.Printf("Approvals:      %s\n", strings.Join(p.Approvals, ", "))
	fmt.Printf("ETA:            %s\n", optionalUint(p.Eta))
	fmt.Printf("State:          %s\n", p.State)
	if p.Executed {
		fmt.Printf("Executed at:    %s\n", optionalUint(p.ExecutedAt))
	}
	if p.RolledBack {
		fmt.Printf("Rolled back:    %s\n", p.FailureReason)
	}
}

func proposalShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show details of a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}
			client, err := apiClient(cmd)
			if err != nil {
				return err
			}
			proposal, err := client.GetProposal(cmd.Context(), id)
			if err != nil {
				return err
			}
			printProposal(proposal)
			return nil
		},
	}
	return cmd
}

func proposalCreateCommand() *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "create <target> <code-ref> <target-version>",
		Short: "Propose upgrading a target",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetVersion, err := strconv.ParseUint(args[2], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid target version %q", args[2])
			}
			client, err := apiClient(cmd)
			if err != nil {
				return err
			}
			proposal, err := client.Propose(cmd.Context(), api.ProposeRequest{
				Target:        args[0],
				CodeRef:       args[1],
				TargetVersion: uint32(targetVersion),
				Tag:           tag,
			})
			if err != nil {
				return err
			}
			printProposal(proposal)
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "free-form label for the proposal")
	return cmd
}

func proposalActionCommand(action string, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}
			client, err := apiClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var proposal *api.ProposalResponse
			switch action {
			case "approve":
				proposal, err = client.Approve(ctx, id)
			case "cancel":
				proposal, err = client.Cancel(ctx, id)
			case "execute":
				result, err := client.Execute(ctx, id)
				if err != nil {
					return err
				}
				fmt.Printf(
					"Upgraded %s to %s (version %d), integrity digest %s\n",
					result.Target,
					result.Implementation,
					result.Version,
					result.Digest,
				)
				return nil
			}
			if err != nil {
				return err
			}
			printProposal(proposal)
			return nil
		},
	}
	return cmd
}

func proxyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Proxy commands",
	}
	addClientFlags(cmd)

	cmd.AddCommand(proxyShowCommand())
	cmd.AddCommand(proxyHistoryCommand())
	cmd.AddCommand(proxyInvokeCommand())

	return cmd
}

func proxyShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <target>",
		Short: "Show the implementation behind a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient(cmd)
			if err != nil {
				return err
			}
			state, err := client.GetProxy(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Target:         %s\n", state.Target)
			fmt.Printf("Implementation: %s\n", state.Implementation)
			if state.PreviousImplementation != "" {
				fmt.Printf("Previous:       %s\n", state.PreviousImplementation)
			}
			fmt.Printf("Governance:     %s\n", state.Governance)
			fmt.Printf("Version:        %d\n", state.Version)
			return nil
		},
	}
	return cmd
}

func proxyHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <target>",
		Short: "Show the upgrade history of a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient(cmd)
			if err != nil {
				return err
			}
			history, err := client.ProxyHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf(
				"%-8s  %-24s  %-24s  %-7s  %-16s  %s\n",
				"ACTION",
				"FROM",
				"TO",
				"VERSION",
				"ACTOR",
				"AT",
			)
			for _, entry := range history {
				fmt.Printf(
					"%-8s  %-24s  %-24s  %-7d  %-16s  %d\n",
					entry.Action,
					entry.FromImplementation,
					entry.ToImplementation,
					entry.ToVersion,
					entry.Actor,
					entry.At,
				)
			}
			return nil
		},
	}
	return cmd
}

func proxyInvokeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoke <target> <method> [arg]",
		Short: "Call a method on the implementation behind a target",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient(cmd)
			if err != nil {
				return err
			}
			var callArgs []byte
			if len(args) == 3 {
				callArgs = []byte(args[2])
			}
			result, err := client.Invoke(cmd.Context(), args[0], args[1], callArgs)
			if err != nil {
				return err
			}
			fmt.Println(string(result))
			return nil
		},
	}
	return cmd
}
