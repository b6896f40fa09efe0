package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-mentor/backend/internal/app"
)

func (c *cli) chatCmd() *cobra.Command {
	var (
		personaID string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "chat <conversation-id|new> <message...>",
		Short: "Send one message to a conversation and print the mentor's reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				ctx := cmd.Context()
				conversationID := args[0]
				if conversationID == "new" {
					conv, err := a.Chat.CreateConversation(ctx, personaID)
					if err != nil {
						return err
					}
					conversationID = conv.ID
					fmt.Fprintf(cmd.ErrOrStderr(), "conversation %s (%s)\n", conv.ID, conv.PersonaID)
				}

				reply, err := a.Chat.Send(ctx, conversationID, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(reply)
				}
				fmt.Fprintln(out, reply.Message.Content)
				for _, r := range reply.Actions {
					if r.Error != "" {
						fmt.Fprintf(out, "  ! %s: %s\n", r.Action.Type, r.Error)
						continue
					}
					fmt.Fprintf(out, "  + %s\n", r.Action.Type)
				}
				for _, r := range reply.Rejected {
					fmt.Fprintf(out, "  ! %s: %s\n", r.Action, r.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&personaID, "persona", "", "persona for a new conversation")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full reply as JSON")
	return cmd
}
