package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/claimstore/agent/internal/config"
	"github.com/claimstore/agent/internal/errors"
)

var rootCmd = &cobra.Command{
	Use:   "claimstore-agent",
	Short: "Claim store collection agent",
	Long: `claimstore-agent moves message-body files out of local check-in
directories and into the central claim store.

Files are claimed by renaming them, so any number of agents may share the
same directories without a lock manager.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/claimstore/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Defaults first so they apply without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/claimstore")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CLAIMSTORE")
	// e.g. CLAIMSTORE_COLLECTOR_CENTRAL_DIR for collector.central_dir
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A config file not found by the search is fine; Load reports what is
	// actually required. Anything else, including an explicit --config that
	// does not exist, is kept for the commands that read the config.
	configReadErr = nil
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configReadErr = errors.NewConfigError("failed to read config file", err).
				WithSource(viper.ConfigFileUsed())
		}
	}
}

// configReadErr is the error from reading the config file, if any.
var configReadErr error
