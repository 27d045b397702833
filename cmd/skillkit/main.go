package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLKIT")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillkit")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()

	setDefaults(viper.GetViper())
}

var tracingShutdown func(context.Context) error

var rootCmd = &cobra.Command{
	Use:   "skillkit",
	Short: "Activate the right skills for a coding workspace",
	Long: `skillkit selects the skills (units of markdown guidance) that apply to the files
being edited and the prompt at hand, resolves conflicts between them, and composes
their bodies into one context document within a size budget.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetLogFormat(viper.GetString("log_format"))
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			return err
		}

		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to initialize tracing")
			return nil
		}
		tracingShutdown = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if tracingShutdown != nil {
			return tracingShutdown(cmd.Context())
		}
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func main() {
	// Add global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (json or fmt)")
	rootCmd.PersistentFlags().StringSlice("skill-dir", nil, "Directory of <name>/SKILL.md skills (repeatable, overrides config)")
	rootCmd.PersistentFlags().String("manifest", "", "YAML skill manifest (overrides config)")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("skills.dirs", rootCmd.PersistentFlags().Lookup("skill-dir"))
	viper.BindPFlag("skills.manifest", rootCmd.PersistentFlags().Lookup("manifest"))

	// Add subcommands
	rootCmd.AddCommand(withTracing(activateCmd))
	rootCmd.AddCommand(withTracing(diagnoseCmd))
	rootCmd.AddCommand(withTracing(listCmd))
	rootCmd.AddCommand(withTracing(validateCmd))
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)

	// Execute
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
