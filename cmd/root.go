package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"llamabridge/config"
)

var (
	configPath string
	hostFlag   string
	verbose    bool

	cfg            *config.Config
	loggingCleanup = func() {}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default ~/.config/llamabridge/settings.toml)")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Ollama server URL (overrides settings and "+config.EnvOllamaHost+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr at debug level")
}

var rootCmd = &cobra.Command{
	Use:   "llamabridge",
	Short: "Bridge chat streams from a local Ollama daemon",
	Long: `llamabridge lists the models of a local Ollama daemon and relays chat
replies fragment by fragment, either to the terminal or to local clients
over HTTP.

Examples:
  llamabridge models                         # list local models
  llamabridge models --filter llama          # fuzzy-filter model names
  llamabridge chat -m mistral:7b "Hi there"  # stream a reply
  llamabridge serve                          # run the local HTTP bridge`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		loggingCleanup()
	},
}

func loadConfig() error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(config.ExpandPath(configPath))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if hostFlag != "" {
		cfg.OllamaHost = hostFlag
	}

	loggingCleanup, err = config.InitLogging(cfg)
	if err != nil {
		// Logging is best effort; the bridge works without it.
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if verbose {
		config.DebugLog = stderrLogger()
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, errorStyle(os.Stderr).Render("Error: "+err.Error()))
		}
		loggingCleanup()
		os.Exit(1)
	}
}
