package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "slurm-client-operator",
	Short: "Subordinate agent managing slurmd and munge on a compute node",
	Long: `slurm-client-operator keeps a single host's SLURM client daemons in
sync with the cluster it belongs to. It consumes relation events carrying the
cluster munge key and the controller's connection facts, converges the local
munge and slurmd daemons onto that configuration, and republishes the host's
own facts so the controller can admit it into the cluster.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"slurm-client-operator version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
}
