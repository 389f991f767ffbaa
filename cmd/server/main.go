package main

import (
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gustavlindstroms/parkmalmokontor/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "parkering",
		Short:         "Parking spot reservations for the Malmö office",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().String("env", "", "Environment profile (development or production); defaults to APP_ENV")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("store", "", "Store driver (firestore or memory)")
	bindFlag(rootCmd, "APP_ENV", "env")
	bindFlag(rootCmd, "LOG_LEVEL", "log-level")
	bindFlag(rootCmd, "STORE_DRIVER", "store")

	rootCmd.AddCommand(newServeCommand(), newRemindCommand(), newDeployCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// loadConfig loads the dotenv profile of the selected environment, then the configuration.
func loadConfig() (*config.Config, string, error) {
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	if env == "" {
		env = config.EnvDevelopment
	}
	envFile, err := config.LoadEnvProfile(env)
	if err != nil {
		return nil, envFile, err
	}
	viper.Set("APP_ENV", env)

	appConfig, err := config.LoadConfig(viper.GetViper())
	return appConfig, envFile, err
}

func viperBind(cmd *cobra.Command, key, flag string) error {
	return viper.BindPFlag(key, cmd.Flags().Lookup(flag))
}
