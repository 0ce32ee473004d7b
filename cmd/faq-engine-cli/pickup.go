package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/kotileipomo/faq-engine/internal/kb"
)

// newPickupCmd creates the pickup subcommand.
func newPickupCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "pickup <YYYY-MM-DDTHH:MM>",
		Short:   "Check a pickup time against opening hours and blackout dates",
		Example: `  faq-engine-cli pickup 2025-12-18T12:00`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.Engine.CheckPickup(ctx, args[0])
			if errors.Is(err, kb.ErrPickupFormat) {
				return err
			}

			if outputJSON {
				out := map[string]interface{}{"ok": err == nil}
				if err != nil {
					out["reason"] = err.Error()
				}
				return printJSON(out)
			}
			if err != nil {
				ui.Error("%s: %v", args[0], err)
				return nil
			}
			ui.Success("%s is a valid pickup time", args[0])
			return nil
		},
	}
}
