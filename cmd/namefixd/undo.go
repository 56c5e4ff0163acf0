package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Reverse the most recent rename or conversion",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := buildService()
			if err != nil {
				return err
			}
			if err := svc.Init(nil); err != nil {
				return fmt.Errorf("init: %w", err)
			}

			result, err := svc.UndoLast()
			if err != nil {
				return err
			}
			if !result.OK {
				fmt.Printf("nothing to undo: %s\n", result.Reason)
				return nil
			}
			fmt.Printf("restored %s -> %s\n", result.From, result.To)
			return nil
		},
	}
}
