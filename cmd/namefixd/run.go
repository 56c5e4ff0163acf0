package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"namefix/pkg/types"
)

func newRunCmd() *cobra.Command {
	var (
		dryRun    bool
		noDryRun  bool
		watchDirs []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start watching and processing files in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, configStore, err := buildService()
			if err != nil {
				return err
			}

			var overrides *types.Config
			if len(watchDirs) > 0 || cmd.Flags().Changed("dry-run") || noDryRun {
				current, err := configStore.Get()
				if err != nil {
					return fmt.Errorf("read config: %w", err)
				}

				cfg := current
				if len(watchDirs) > 0 {
					cfg.WatchDirs = watchDirs
				}
				if cmd.Flags().Changed("dry-run") {
					cfg.DryRun = dryRun
				} else if noDryRun {
					cfg.DryRun = false
				}
				overrides = &cfg
			}

			if err := svc.Init(overrides); err != nil {
				return fmt.Errorf("init: %w", err)
			}

			svc.OnFile(func(e types.ServiceFileEvent) {
				fmt.Printf("%s\t%s\t%s\n", e.Kind, e.File, e.Target)
			})
			svc.OnToast(func(e types.ToastEvent) {
				fmt.Fprintf(os.Stderr, "%s: %s\n", e.Level, e.Message)
			})

			if err := svc.Start(); err != nil {
				return fmt.Errorf("start: %w", err)
			}

			status := svc.GetStatus()
			fmt.Printf("watching %d directories (dry-run=%v)\n", len(status.Directories), status.DryRun)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			<-sigChan

			fmt.Println("stopping...")
			svc.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "preview changes without touching disk")
	cmd.Flags().BoolVar(&noDryRun, "no-dry-run", false, "shorthand for --dry-run=false")
	cmd.Flags().StringSliceVar(&watchDirs, "watch", nil, "directory to watch (repeatable)")

	return cmd
}
