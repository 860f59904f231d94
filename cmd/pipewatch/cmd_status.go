package main

import (
	"errors"
	"fmt"

	"github.com/irisdrone/pipewatch/internal/client"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/internal/risk"
	"github.com/spf13/cobra"
)

var statusFlags struct {
	location   string
	defectType string
}

var statusCmd = &cobra.Command{
	Use:   "status <id> <pending|progress|resolved>",
	Short: "Change the status of a registry entry",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusFlags.location, "location", "", "entry location, used when the id is unknown to the backend")
	f.StringVar(&statusFlags.defectType, "type", "", "entry defect type, used with --location")
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := registry.ParseStatus(args[1])
	if err != nil {
		return err
	}
	c, _, err := authedClient()
	if err != nil {
		return err
	}

	d, err := c.UpdateStatus(cmd.Context(), client.StatusUpdate{
		ID:         args[0],
		Status:     status,
		Location:   statusFlags.location,
		DefectType: risk.DefectType(statusFlags.defectType),
	})
	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("defect %s not found", args[0])
	}
	if err != nil {
		return loginHint(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s (%s, %s) is now %s\n", d.ID, d.DefectType, d.Location, d.Status)
	return nil
}
