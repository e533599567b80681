package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/provide-io/flavor/go/runpack/internal/config"
	"github.com/provide-io/flavor/go/runpack/pkg"
	"github.com/provide-io/flavor/go/runpack/pkg/runpack/format"
	"github.com/provide-io/flavor/go/runpack/pkg/utils/shellparse"
)

// readReport is the --json shape of the read command.
type readReport struct {
	Path             string                 `json:"path"`
	FormatVersion    uint32                 `json:"format_version"`
	UnpackedLen      int64                  `json:"unpacked_len"`
	DescriptorLength uint64                 `json:"descriptor_length"`
	Checksum         string                 `json:"checksum"`
	Descriptor       *format.DescriptorSpec `json:"descriptor"`
}

func newReadReport(path string, ex *format.Extracted) *readReport {
	return &readReport{
		Path:             path,
		FormatVersion:    ex.Footer.FormatVersion,
		UnpackedLen:      ex.UnpackedLen,
		DescriptorLength: ex.Footer.DescriptorLength,
		Checksum:         format.FormatChecksum(ex.Footer.Checksum),
		Descriptor:       format.SpecOf(ex.Descriptor),
	}
}

func (c *cli) newReadCmd() *cobra.Command {
	var (
		asJSON bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "read <program>",
		Short: "Print the descriptor embedded in a packed file",
		Long: `Read prints the embedded descriptor. The text format is for people; json
adds the footer details; toml prints a descriptor document that pack accepts
back through --descriptor.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case asJSON:
				output = config.OutputJSON
			case !cmd.Flags().Changed("format"):
				output = c.cfg.Output
			}
			output = strings.ToLower(strings.TrimSpace(output))
			if output != config.OutputText && output != config.OutputJSON && output != config.OutputTOML {
				return fmt.Errorf("invalid --format %q: want text, json or toml", output)
			}

			ex, err := pkg.ReadFile(args[0], c.logger)
			if err != nil {
				return err
			}
			report := newReadReport(args[0], ex)

			switch output {
			case config.OutputJSON:
				return writeJSON(c.stdout, report)
			case config.OutputTOML:
				data, err := report.Descriptor.Marshal(format.DescriptorTOML)
				if err != nil {
					return err
				}
				_, err = c.stdout.Write(data)
				return err
			default:
				renderReport(c.stdout, report)
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&output, "format", config.OutputText, "Output format: text, json or toml (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Shorthand for --format json")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderReport(w io.Writer, r *readReport) {
	d := r.Descriptor
	var b strings.Builder

	b.WriteString(TitleStyle.Render("📦 "+r.Path) + "\n")
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("format v%d, %d content bytes, %d descriptor bytes",
		r.FormatVersion, r.UnpackedLen, r.DescriptorLength)) + "\n\n")

	row := func(key, value string) {
		b.WriteString(KeyStyle.Render(key) + value + "\n")
	}
	list := func(key string, items []string) {
		if len(items) == 0 {
			row(key, MutedStyle.Render("(none)"))
			return
		}
		for i, item := range items {
			if i == 0 {
				row(key, item)
			} else {
				row("", item)
			}
		}
	}

	row("variant", d.Variant)
	if d.Interpreter != "" {
		row("interpreter", d.Interpreter)
	} else if d.Variant != format.VariantStatic.String() {
		row("interpreter", MutedStyle.Render("(none)"))
	}
	if len(d.InterpreterArgs) > 0 {
		row("interpreter args", shellparse.Join(d.InterpreterArgs))
	}
	list("library paths", d.LibraryPaths)

	keys := make([]string, 0, len(d.Env))
	for k := range d.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+d.Env[k])
	}
	list("env", env)
	list("resources", d.Resources)
	row("checksum", MutedStyle.Render(r.Checksum))

	fmt.Fprint(w, b.String())
}
