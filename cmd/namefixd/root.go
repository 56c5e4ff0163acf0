package main

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"namefix/internal/config"
	"namefix/internal/convert"
	"namefix/internal/events"
	"namefix/internal/journal"
	"namefix/internal/namefix"
	"namefix/internal/pathutils"
	"namefix/internal/rename"
	"namefix/internal/trash"
)

var cfgFile string

// NewRootCmd builds the namefixd command tree: run, status, and undo, each
// a thin wrapper around namefix.Service's public surface.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "namefixd",
		Short: "Watches directories and renames or converts new files by profile",
		Long: `namefixd watches one or more local directories for newly created files
and applies per-file processing - canonical rename, format conversion, or
both - driven by an ordered set of user-defined profiles. Every mutation is
logged to an undo journal and dry-run mode is on by default.`,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: platform config dir)/config.json")

	root.AddCommand(newRunCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newUndoCmd())

	return root
}

// buildService wires every collaborator the orchestrator needs and returns
// an initialized (but not started) Service, along with its config store so
// callers can read back the merged config.
func buildService() (*namefix.Service, *config.Store, error) {
	cfgPath := cfgFile
	if cfgPath == "" {
		path, err := config.DefaultPath()
		if err != nil {
			return nil, nil, err
		}
		cfgPath = path
	}

	stateDir, err := pathutils.StateDir()
	if err != nil {
		return nil, nil, err
	}
	if err := pathutils.EnsureDir(stateDir); err != nil {
		return nil, nil, err
	}

	configStore := config.New(cfgPath)
	journalStore := journal.New(filepath.Join(stateDir, "journal.ndjson"))
	trashService := trash.New(filepath.Join(stateDir, "trash"))
	convertService := convert.NewExecService(defaultConverterBinary())

	svc := namefix.New(namefix.Deps{
		ConfigStore: configStore,
		Journal:     journalStore,
		Rename:      rename.New(),
		Convert:     convertService,
		Trash:       trashService,
		Bus:         events.New(),
	})

	return svc, configStore, nil
}

// defaultConverterBinary picks the platform's built-in image converter
// unless NAMEFIX_CONVERTER overrides it.
func defaultConverterBinary() string {
	if bin := os.Getenv("NAMEFIX_CONVERTER"); bin != "" {
		return bin
	}
	if runtime.GOOS == "darwin" {
		return "sips"
	}
	return "magick"
}
