// Package cmd implements the command-line interface for the crawl
// analysis pipeline service.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rankforge/crawlpipe/cmd/migrate"
	"github.com/rankforge/crawlpipe/cmd/serve"
	"github.com/rankforge/crawlpipe/cmd/status"
	"github.com/rankforge/crawlpipe/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "crawlpipe",
		Short: "Website crawl and semantic analysis pipeline",
		Long: `crawlpipe runs the website analysis pipeline: sitemap discovery,
delegated crawling, content extraction, semantic mapping, and keyword
gap analysis.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Parse flags early so --config and --debug affect configuration.
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("crawlpipe version %s\n", version)
		},
	})

	rootCmd.AddCommand(serve.Command())
	rootCmd.AddCommand(migrate.Command())
	rootCmd.AddCommand(status.Command())
}

// initConfig wires Viper before any command runs.
func initConfig() error {
	if err := config.InitializeViper(cfgFile); err != nil {
		return err
	}

	if debug {
		viper.Set("app.debug", true)
		viper.Set("logger.level", "debug")
	}

	return nil
}
