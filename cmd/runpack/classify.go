package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provide-io/flavor/go/runpack/pkg"
	"github.com/provide-io/flavor/go/runpack/pkg/runpack/format"
	"github.com/provide-io/flavor/go/runpack/pkg/utils/shellparse"
)

func (c *cli) newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>",
		Short: "Print the executable class of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			head, err := pkg.ReadHead(args[0])
			if err != nil {
				return err
			}
			class, err := format.Classify(head)
			if err != nil {
				return err
			}
			c.logger.Debug("🔍 Classified", "path", args[0], "class", class)

			fmt.Fprintln(c.stdout, class)
			if sb, ok := format.ParseShebang(head); ok {
				line := "interpreter: " + sb.Interpreter
				if len(sb.Args) > 0 {
					line += " " + shellparse.Join(sb.Args)
				}
				if sb.ViaEnv {
					line += " (via env)"
				}
				fmt.Fprintln(c.stdout, MutedStyle.Render(line))
			}
			return nil
		},
	}
}
