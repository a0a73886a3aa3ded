package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adalundhe/titlekeep/core/cache"
	"github.com/adalundhe/titlekeep/core/config"
	"github.com/adalundhe/titlekeep/core/creation"
	"github.com/adalundhe/titlekeep/core/engine"
	"github.com/adalundhe/titlekeep/core/events"
	"github.com/adalundhe/titlekeep/core/rename"
	"github.com/adalundhe/titlekeep/core/state"
	"github.com/adalundhe/titlekeep/core/vault"
	"github.com/adalundhe/titlekeep/core/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [vault-dir]",
	Short: "Watch a vault and rename notes as they change",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfgMan := config.NewManager(flagConfig)
	if err := cfgMan.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := cfgMan.Get()

	dv, err := vault.NewDirVault(args[0], nil)
	if err != nil {
		return err
	}
	defer dv.Close()

	st := state.NewStore()
	ca, err := cache.NewManager(dv, cache.Config{
		ContentCapacity: cfg.Cache.ContentCapacity,
		ExistenceTTL:    cfg.Cache.ExistenceTTL,
	})
	if err != nil {
		return err
	}

	orch, err := rename.New(st, ca, dv, nil, cfgMan, nil, log)
	if err != nil {
		return err
	}

	probe, err := creation.NewStaticProbe(cfg.Templates)
	if err != nil {
		return err
	}

	vw, err := watcher.New(watcher.Config{Root: args[0]})
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Deps{
		Config:       cfgMan,
		State:        st,
		Cache:        ca,
		Orchestrator: orch,
		Handler:      creation.NewHandler(nil, st, log),
		Probe:        probe,
		Bus:          events.NewTemplateBus(),
		Vault:        dv,
		Watcher:      vw,
		Log:          log,
	})
	if err != nil {
		return err
	}

	if err := eng.Start(cmd.Context()); err != nil {
		return err
	}
	defer eng.Stop()

	log.Info("watching vault", "dir", args[0])

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-cmd.Context().Done():
	}
	return nil
}
