package cmd

import (
	"os"
	"strings"

	"github.com/djeeyo/nmreggae/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// cfg is loaded once in PersistentPreRunE and shared by every subcommand
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "nmreggae",
	Short: "New Mexico reggae events calendar",
	Long: `Serves the public New Mexico reggae events calendar, the admin CSV
upload and backup endpoints, and the background backup worker.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		if env := os.Getenv("LOG_LEVEL"); env != "" {
			cfg.Logging.Level = env
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		setupLogging(cfg)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// setupLogging configures the global zerolog logger
func setupLogging(c config.Config) {
	if strings.EqualFold(c.Logging.Format, "console") || c.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
