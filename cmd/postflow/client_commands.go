package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"postflow/internal/api"
)

func newClientCommand(ctx *commandContext) *cobra.Command {
	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "Manage clients",
	}
	clientCmd.AddCommand(newClientAddCommand(ctx))
	clientCmd.AddCommand(newClientListCommand(ctx))
	clientCmd.AddCommand(newClientTokenCommand(ctx))
	return clientCmd
}

func newClientAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <email>",
		Short: "Register a client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				client, err := s.components.Service.CreateClient(cmd.Context(), api.CreateClientRequest{Name: args[0], Email: args[1]})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, client)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created client #%d %s <%s>\n", client.ID, client.Name, client.Email)
				return nil
			})
		},
	}
}

func newClientListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				clients, err := s.components.Service.ListClients(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, clients)
				}
				out := cmd.OutOrStdout()
				if len(clients) == 0 {
					fmt.Fprintln(out, "No clients registered")
					return nil
				}
				rows := make([][]string, 0, len(clients))
				for _, client := range clients {
					rows = append(rows, []string{strconv.FormatInt(client.ID, 10), client.Name, client.Email, dash(client.CreatedAt)})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Email", "Created"}, rows, []columnAlignment{alignRight}))
				return nil
			})
		},
	}
}

func newClientTokenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "token <client-id>",
		Short: "Issue a review token for a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(func(s *session) error {
				token, err := s.components.Service.IssueToken(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, token)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Token for client #%d (expires %s):\n", token.ClientID, token.ExpiresAt)
				fmt.Fprintln(out, token.Token)
				return nil
			})
		},
	}
}

func parseIDArg(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: expected a positive integer", raw)
	}
	return id, nil
}
