package main

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/provide-io/flavor/go/runpack/pkg"
)

func (c *cli) newVerifyCmd() *cobra.Command {
	var checksum string

	cmd := &cobra.Command{
		Use:   "verify <program>",
		Short: "Check the footer, checksum and descriptor of a packed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			result, err := pkg.VerifyFileWithLogger(args[0], checksum, c.loggerAtLeast(hclog.Info))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "%s %s (%s, content %s)\n",
				SuccessStyle.Render("✓ Verified"), args[0], result.Extracted.Descriptor.Variant(), result.Class)
			return nil
		},
	}
	cmd.Flags().StringVar(&checksum, "checksum", "", "Expected descriptor checksum (sha256:<hex>)")
	return cmd
}
