package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provide-io/flavor/go/runpack/pkg"
)

func (c *cli) newStripCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strip <program> <output>",
		Short: "Write the original content of a packed file",
		Long: `Strip removes the descriptor and footer and writes what remains to output.
A file without a pack is copied unchanged.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			removed, err := pkg.StripFile(args[0], args[1], c.logger)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(c.stdout, "%s %s\n", SuccessStyle.Render("✓ Stripped"), args[1])
			} else {
				fmt.Fprintf(c.stdout, "%s %s\n", WarningStyle.Render("⚠ Not packed, copied"), args[1])
			}
			return nil
		},
	}
}
