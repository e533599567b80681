package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/provide-io/flavor/go/runpack/pkg"
	"github.com/provide-io/flavor/go/runpack/pkg/runpack/format"
	"github.com/provide-io/flavor/go/runpack/pkg/utils/permissions"
)

type packFlags struct {
	variant         string
	interpreter     string
	interpreterArgs []string
	libraryPaths    []string
	env             []string
	resources       []string
	descriptorPath  string
	repack          bool
	class           string
	loader          string
	mode            string
}

func (c *cli) newPackCmd() *cobra.Command {
	var f packFlags

	cmd := &cobra.Command{
		Use:   "pack <input> <output>",
		Short: "Append a metadata descriptor to an executable or script",
		Long: `Pack classifies the input, encodes the descriptor built from the flags
(and --descriptor file) and writes content, descriptor and footer to output.
Input and output may be the same path.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPack(cmd, args[0], args[1], &f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.variant, "variant", "", "Descriptor variant: metadata, static or script (default: derived from the class)")
	flags.StringVar(&f.interpreter, "interpreter", "", "Interpreter path (default for scripts: taken from the shebang)")
	flags.StringArrayVar(&f.interpreterArgs, "interpreter-arg", nil, "Interpreter argument (repeatable)")
	flags.StringArrayVar(&f.libraryPaths, "library-path", nil, "Library search path (repeatable, order kept)")
	flags.StringArrayVar(&f.env, "env", nil, "Environment entry KEY=VALUE (repeatable)")
	flags.StringArrayVar(&f.resources, "resource", nil, "Resource identifier (repeatable)")
	flags.StringVar(&f.descriptorPath, "descriptor", "", "Descriptor file (.json or .toml); flags extend it")
	flags.BoolVar(&f.repack, "repack", false, "Replace an existing pack instead of failing")
	flags.StringVar(&f.class, "class", "", "Executable class hint: elf-dynamic, elf-static or script")
	flags.StringVar(&f.loader, "loader", "", "Interpreter to write into the shebang of packed scripts")
	flags.StringVar(&f.mode, "mode", "", "Output file mode in octal (default from config, 0755)")
	return cmd
}

func (c *cli) runPack(cmd *cobra.Command, input, output string, f *packFlags) error {
	class, err := format.ParseClass(f.class)
	if err != nil {
		return err
	}

	spec, err := f.descriptorSpec()
	if err != nil {
		return err
	}
	if err := c.completeSpec(spec, input, class); err != nil {
		return err
	}
	d, err := spec.Build()
	if err != nil {
		return err
	}

	mode, err := c.cfg.FileMode()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("mode") {
		if mode, err = permissions.ParseOctalString(f.mode, permissions.DefaultExecutablePerms); err != nil {
			return err
		}
	}
	loader := c.cfg.Loader
	if cmd.Flags().Changed("loader") {
		loader = f.loader
	}

	if err := pkg.PackFile(input, output, pkg.PackFileOptions{
		Descriptor: d,
		Class:      class,
		Repack:     f.repack,
		Loader:     loader,
		Mode:       mode,
		Logger:     c.logger,
	}); err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "%s %s (%s)\n", SuccessStyle.Render("✓ Packed"), output, d.Variant())
	return nil
}

// descriptorSpec loads --descriptor and layers the flag values over it.
func (f *packFlags) descriptorSpec() (*format.DescriptorSpec, error) {
	spec := &format.DescriptorSpec{}
	if f.descriptorPath != "" {
		loaded, err := format.LoadDescriptorSpec(f.descriptorPath)
		if err != nil {
			return nil, err
		}
		spec = loaded
	}

	env, err := parseEnvFlags(f.env)
	if err != nil {
		return nil, err
	}
	spec.Merge(&format.DescriptorSpec{
		Variant:         f.variant,
		Interpreter:     f.interpreter,
		InterpreterArgs: f.interpreterArgs,
		LibraryPaths:    f.libraryPaths,
		Env:             env,
		Resources:       f.resources,
	})
	return spec, nil
}

// completeSpec fills in the variant from the input's class and, for
// scripts, the interpreter from its shebang.
func (c *cli) completeSpec(spec *format.DescriptorSpec, input string, hint format.ExecutableClass) error {
	spec.Variant = strings.ToLower(strings.TrimSpace(spec.Variant))
	if spec.Variant != "" && (spec.Variant != format.VariantScript.String() || spec.Interpreter != "") {
		return nil
	}

	head, err := pkg.ReadHead(input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if spec.Variant == "" {
		class := hint
		if class == format.ClassUnknown {
			if class, err = format.Classify(head); err != nil {
				return &format.PackError{Kind: format.PackUnsupportedClass, Err: err}
			}
		}
		variant, ok := class.DefaultVariant()
		if !ok {
			return &format.PackError{Kind: format.PackUnsupportedClass, Class: class}
		}
		spec.Variant = variant.String()
		c.logger.Debug("🔍 Variant derived from class", "class", class, "variant", spec.Variant)
	}

	if spec.Variant == format.VariantScript.String() && spec.Interpreter == "" {
		if sb, ok := format.ParseShebang(head); ok {
			spec.Interpreter = sb.Interpreter
			if len(spec.InterpreterArgs) == 0 {
				spec.InterpreterArgs = sb.Args
			}
			c.logger.Debug("📜 Interpreter taken from shebang", "interpreter", sb.Interpreter, "args", sb.Args)
		}
	}
	return nil
}

// parseEnvFlags turns repeated KEY=VALUE flags into a map; later flags win.
func parseEnvFlags(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q: want KEY=VALUE", entry)
		}
		env[key] = value
	}
	return env, nil
}
