package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-ferry/internal/config"
	"db-ferry/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// initErr holds a config read failure until a command runs.
	initErr error

	cfg      *config.Config
	logger   *slog.Logger
	closeLog = func() {}
)

var RootCmd = &cobra.Command{
	Use:   "db-ferry",
	Short: "Migrate a REST-exposed database into SQL and keep a mirror in sync",
	Long: `
  ____  ____    _____ _____ ____  ____  __   __
 |  _ \| __ )  |  ___| ____|  _ \|  _ \ \ \ / /
 | | | |  _ \  | |_  |  _| | |_) | |_) | \ V /
 | |_| | |_) | |  _| | |___|  _ <|  _ <   | |
 |____/|____/  |_|   |_____|_| \_\_| \_\  |_|

DB FERRY - one-shot migration and target-to-mirror sync
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if initErr != nil {
			return initErr
		}
		var err error
		if cfg, err = config.Load(viper.GetViper()); err != nil {
			return err
		}
		l, cleanup, err := logging.Setup(logging.Options{
			Level:  cfg.LogLevel,
			File:   cfg.LogFile,
			SeqURL: cfg.SeqURL,
		})
		if err != nil {
			return fmt.Errorf("setup logging: %w", err)
		}
		logger, closeLog = l, cleanup
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLog()
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		closeLog()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-ferry.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "console log level: debug, info, warn, error")

	viper.BindPFlag("log_level", RootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in the config file and environment variables.
func initConfig() {
	initErr = config.Init(viper.GetViper(), cfgFile)
	if initErr == nil && viper.ConfigFileUsed() != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
