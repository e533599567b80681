package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/provide-io/flavor/go/runpack/internal/config"
	"github.com/provide-io/flavor/go/runpack/pkg/logging"
)

const version = "0.1.0"

// cli carries state shared by the subcommands of one invocation.
type cli struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	logOpts logging.Options
	logger  hclog.Logger
	logFile *os.File

	stdout io.Writer
	stderr io.Writer
}

func getBuildTimestamp() string {
	// Try to get vcs.time from build info
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	// Fallback to binary modification time
	if exePath, err := os.Executable(); err == nil {
		if stat, err := os.Stat(exePath); err == nil {
			return stat.ModTime().UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *cli) {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "runpack",
		Short: "Embed and read executable metadata descriptors",
		Long: `runpack appends a versioned metadata descriptor to an executable or script
and reads it back without running the program.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) { c.teardown() },
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate(fmt.Sprintf("runpack %s\nBuilt: %s\n", version, getBuildTimestamp()))

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default: runpack.{toml,yaml,json} in the user config dir)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(
		c.newPackCmd(),
		c.newReadCmd(),
		c.newStripCmd(),
		c.newClassifyCmd(),
		c.newVerifyCmd(),
	)
	return root, c
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, path, err := config.Load(config.LoadOptions{ConfigFile: c.configPath})
	if err != nil {
		return err
	}
	c.cfg = cfg

	output := c.stderr
	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		c.logFile = f
		output = f
	}

	level := cfg.LogLevel
	if c.logLevel != "" {
		level = c.logLevel
	}
	c.logOpts = logging.Options{
		Name:   "runpack." + cmd.Name(),
		Level:  level,
		JSON:   cfg.LogJSON,
		Output: output,
	}
	c.logger = logging.New(c.logOpts)

	if path != "" {
		c.logger.Debug("Loaded configuration", "path", path)
	}
	return nil
}

func (c *cli) teardown() {
	if c.logFile != nil {
		_ = c.logFile.Close()
		c.logFile = nil
	}
}

// loggerAtLeast returns a logger that emits at least level, for commands
// whose log lines are their output.
func (c *cli) loggerAtLeast(level hclog.Level) hclog.Logger {
	if c.logger.GetLevel() <= level {
		return c.logger
	}
	opts := c.logOpts
	opts.Level = level.String()
	return logging.New(opts)
}

func main() {
	root, c := newRootCmd(os.Stdout, os.Stderr)
	err := root.Execute()
	c.teardown()
	if err != nil {
		fmt.Fprintln(os.Stderr, renderError(err))
		os.Exit(exitCode(err))
	}
}
