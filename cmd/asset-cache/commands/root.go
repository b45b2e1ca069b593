// Package commands implements the asset-cache command line.
package commands

import (
	"context"
	"io"
	"os"

	assetcache "github.com/ericselin/asset-cache"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// CLI represents the command line interface for asset-cache.
type CLI struct {
	rootCmd *cobra.Command
	version string
	// logFile is kept open for the lifetime of the command
	logFile *os.File
}

// New creates a new CLI instance.
func New(version string) *CLI {
	rootCmd := &cobra.Command{
		Use:           "asset-cache",
		Short:         "Builds, minifies and caches CSS and JavaScript assets",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().Bool("vv", false, "Verbosity: trace logging")
	rootCmd.PersistentFlags().String("log-file", "", "Log file to use (in addition to stderr)")

	c := &CLI{
		rootCmd: rootCmd,
		version: version,
	}
	rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
		if c.logFile != nil {
			c.logFile.Close()
		}
	}

	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newBuildCmd(assetcache.KindCSS, "css"))
	rootCmd.AddCommand(c.newBuildCmd(assetcache.KindJavaScript, "js"))
	rootCmd.AddCommand(c.newWarmCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOut sets the writer assets are printed to. Used for testing.
func (c *CLI) SetOut(w io.Writer) {
	c.rootCmd.SetOut(w)
}

// open loads the config, sets up logging and creates the asset cache.
// The caller must close the returned asset cache.
func (c *CLI) open(cmd *cobra.Command) (*assetcache.AssetCache, assetcache.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	config, err := assetcache.LoadConfig(configFile)
	if err != nil {
		return nil, config, err
	}
	if err := c.setupLogging(cmd, config.Server.LogLevel); err != nil {
		return nil, config, err
	}
	if configFile != "" {
		log.Debug().Str("config", configFile).Msg("Loaded config")
	}
	a, err := assetcache.New(config)
	return a, config, err
}

// setupLogging logs to stderr, since stdout may carry assets, and also to
// the log file if one was given.
func (c *CLI) setupLogging(cmd *cobra.Command, level string) error {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	if trace, _ := cmd.Flags().GetBool("vv"); trace {
		logLevel = zerolog.TraceLevel
	}

	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
	if logFilename, _ := cmd.Flags().GetString("log-file"); logFilename != "" {
		logFileOutput, err := os.OpenFile(logFilename, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			return err
		}
		c.logFile = logFileOutput
		logOutputs = append(logOutputs, logFileOutput)
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", c.version).Logger()
	return nil
}
