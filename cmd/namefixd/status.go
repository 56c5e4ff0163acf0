package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current config's watch directories and dry-run state",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, configStore, err := buildService()
			if err != nil {
				return err
			}

			cfg, err := configStore.Get()
			if err != nil {
				return err
			}

			fmt.Printf("dry-run: %v\n", cfg.DryRun)
			fmt.Printf("launch on login: %v\n", cfg.LaunchOnLogin)
			fmt.Printf("watch directories (%d):\n", len(cfg.WatchDirs))
			for _, dir := range cfg.WatchDirs {
				fmt.Printf("  - %s\n", dir)
			}
			fmt.Printf("profiles (%d):\n", len(cfg.Profiles))
			for _, p := range cfg.Profiles {
				state := "enabled"
				if !p.Enabled {
					state = "disabled"
				}
				fmt.Printf("  - %s [%s] pattern=%q action=%s priority=%d\n", p.ID, state, p.Pattern, p.EffectiveAction(), p.Priority)
			}
			return nil
		},
	}
}
