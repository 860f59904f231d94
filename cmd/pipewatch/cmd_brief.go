package main

import (
	"errors"
	"fmt"

	"github.com/irisdrone/pipewatch/internal/client"
	"github.com/spf13/cobra"
)

var briefFlags struct {
	ask string
}

var briefCmd = &cobra.Command{
	Use:   "brief <id>",
	Short: "Show the inspection briefing for a registry entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runBrief,
}

func init() {
	briefCmd.Flags().StringVar(&briefFlags.ask, "ask", "", "follow-up question for the assistant about this defect")
}

func runBrief(cmd *cobra.Command, args []string) error {
	c, _, err := authedClient()
	if err != nil {
		return err
	}

	b, err := c.Briefing(cmd.Context(), args[0])
	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("defect %s not found", args[0])
	}
	if err != nil {
		return loginHint(err)
	}

	r := stdoutRenderer(cmd.OutOrStdout())
	out := cmd.OutOrStdout()
	if b.ActionLevel != "" {
		fmt.Fprintln(out, r.title.Render(b.ActionLevel))
	}
	fmt.Fprintln(out, b.Message)

	if briefFlags.ask == "" {
		return nil
	}
	resp, err := c.SendChat(cmd.Context(), client.ChatRequest{Message: briefFlags.ask, DefectID: args[0]})
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("assistant unavailable: %s", apiErr.Message)
		}
		return loginHint(err)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, r.title.Render("Assistant ("+resp.Model+")"))
	fmt.Fprintln(out, resp.Response)
	return nil
}
