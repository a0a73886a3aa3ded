package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/adalundhe/titlekeep/core/cache"
	"github.com/adalundhe/titlekeep/core/config"
	"github.com/adalundhe/titlekeep/core/rename"
	"github.com/adalundhe/titlekeep/core/state"
	"github.com/adalundhe/titlekeep/core/vault"
)

var (
	syncDryRun        bool
	syncIgnoreFolders bool
)

var syncCmd = &cobra.Command{
	Use:   "sync [vault-dir]",
	Short: "Rename every note in a vault to match its first line",
	Args:  cobra.ExactArgs(1),
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report without renaming")
	syncCmd.Flags().BoolVar(&syncIgnoreFolders, "ignore-folder-exclusions", false, "process excluded folders too")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
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

	paths, err := dv.ListAll()
	if err != nil {
		return fmt.Errorf("list vault: %w", err)
	}
	sort.Strings(paths)

	docs := make([]vault.Document, 0, len(paths))
	now := time.Now()
	for _, p := range paths {
		docs = append(docs, vault.Document{Path: p, CreatedAt: now, ModifiedAt: now})
	}

	if syncDryRun {
		return dryRun(cmd, orch, docs)
	}

	result := orch.ProcessBatch(cmd.Context(), docs, rename.Options{
		ShowNotices:           true,
		IgnoreFolderExclusion: syncIgnoreFolders,
	})

	fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
	for _, failure := range result.Failures {
		fmt.Fprintf(os.Stderr, "failed: %s: %v\n", failure.Path, failure.Err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d notes failed", result.Failed, result.Total)
	}
	return nil
}

func dryRun(cmd *cobra.Command, orch *rename.Orchestrator, docs []vault.Document) error {
	for _, doc := range docs {
		target, err := orch.PreviewTarget(cmd.Context(), doc)
		if err != nil || target == "" || target == doc.Path {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", doc.Path, target)
	}
	return nil
}
