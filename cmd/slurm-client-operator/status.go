package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canonical/hpct-slurm-client-operator/pkg/facts"
	"github.com/canonical/hpct-slurm-client-operator/pkg/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the unit's readiness status",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")

		store, err := facts.NewBoltStore(dataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		snapshot, err := store.Snapshot()
		if err != nil {
			return err
		}
		outcome, err := store.Outcome()
		if err != nil {
			return err
		}

		fmt.Println(status.Derive(snapshot, outcome).String())
		return nil
	},
}

func init() {
	statusCmd.Flags().String("data-dir", "/var/lib/slurm-client-operator", "State directory")
}
