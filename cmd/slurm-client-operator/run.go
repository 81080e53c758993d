package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/canonical/hpct-slurm-client-operator/pkg/agent"
	"github.com/canonical/hpct-slurm-client-operator/pkg/daemon"
	"github.com/canonical/hpct-slurm-client-operator/pkg/facts"
	"github.com/canonical/hpct-slurm-client-operator/pkg/log"
	"github.com/canonical/hpct-slurm-client-operator/pkg/reconcile"
	"github.com/canonical/hpct-slurm-client-operator/pkg/relation"
	"github.com/canonical/hpct-slurm-client-operator/pkg/system"
	"github.com/canonical/hpct-slurm-client-operator/pkg/sysinfo"
)

// fileConfig is the optional YAML agent configuration. Flags override it.
type fileConfig struct {
	DataDir     string `yaml:"data-dir"`
	SpoolDir    string `yaml:"spool-dir"`
	MetricsAddr string `yaml:"metrics-addr"`
	Identity    string `yaml:"identity"`
	LogLevel    string `yaml:"log-level"`
	LogJSON     bool   `yaml:"log-json"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent event loop",
	Long: `Run the agent: watch the event spool, handle relation events one at a
time, and keep munge and slurmd converged with the facts received so far.`,
	RunE: runAgent,
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "YAML config file")
	runCmd.Flags().String("data-dir", "/var/lib/slurm-client-operator", "State directory")
	runCmd.Flags().String("spool-dir", "", "Event spool directory (default <data-dir>/events)")
	runCmd.Flags().String("metrics-addr", "", "Prometheus listen address (empty disables)")
	runCmd.Flags().String("identity", "", "Unit identity published to the controller (default hostname)")
	runCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	runCmd.Flags().Bool("log-json", false, "Emit JSON logs")
}

func loadConfig(cmd *cobra.Command) (fileConfig, error) {
	cfg := fileConfig{}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Explicit flags win over the file; unset flags fall back to it.
	stringFlag := func(name string, into *string) {
		if cmd.Flags().Changed(name) || *into == "" {
			*into, _ = cmd.Flags().GetString(name)
		}
	}
	stringFlag("data-dir", &cfg.DataDir)
	stringFlag("spool-dir", &cfg.SpoolDir)
	stringFlag("metrics-addr", &cfg.MetricsAddr)
	stringFlag("identity", &cfg.Identity)
	stringFlag("log-level", &cfg.LogLevel)
	if cmd.Flags().Changed("log-json") {
		cfg.LogJSON, _ = cmd.Flags().GetBool("log-json")
	}

	if cfg.SpoolDir == "" {
		cfg.SpoolDir = filepath.Join(cfg.DataDir, "events")
	}
	if cfg.Identity == "" {
		host, err := os.Hostname()
		if err != nil {
			return cfg, fmt.Errorf("resolve default identity: %w", err)
		}
		cfg.Identity = host
	}
	return cfg, nil
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := facts.NewBoltStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	bags := relation.NewDirBags(filepath.Join(cfg.DataDir, "relations"))
	ctrl := daemon.NewController(system.NewHostSystem(), daemon.DefaultSpecs())
	reconciler := reconcile.New(store, ctrl, bags, sysinfo.NewHostProbe(), cfg.Identity)
	registry := relation.NewRegistry(store, bags)

	a := agent.New(agent.Config{
		SpoolDir:    cfg.SpoolDir,
		MetricsAddr: cfg.MetricsAddr,
	}, store, registry, reconciler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}
