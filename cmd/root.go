package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	devicesCmd "github.com/openbiotel/biotel-monitor-go/pkg/cmd/devices"
	loginCmd "github.com/openbiotel/biotel-monitor-go/pkg/cmd/login"
	logoutCmd "github.com/openbiotel/biotel-monitor-go/pkg/cmd/logout"
	statusCmd "github.com/openbiotel/biotel-monitor-go/pkg/cmd/status"
	watchCmd "github.com/openbiotel/biotel-monitor-go/pkg/cmd/watch"
	"github.com/openbiotel/biotel-monitor-go/pkg/config"
	"github.com/openbiotel/biotel-monitor-go/version"
)

const envPrefix = "BTM"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "btm",
	Short:   "Biometric telemetry monitor client",
	Long:    ``,
	Version: version.FullVersion,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.btm.yml)")

	rootCmd.PersistentFlags().StringVar(&config.IdpDomain, "idp-domain",
		"",
		"base URL of the identity provider hosted UI")
	rootCmd.PersistentFlags().StringVar(&config.Issuer, "issuer",
		"",
		"OIDC issuer URL (endpoints are discovered when set)")
	rootCmd.PersistentFlags().StringVar(&config.ClientID, "client-id",
		"",
		"OAuth2 client id")
	rootCmd.PersistentFlags().StringSliceVar(&config.Scopes, "scopes",
		[]string{"openid", "email"},
		"OAuth2 scopes requested on sign-in")
	rootCmd.PersistentFlags().StringVar(&config.RedirectURI, "redirect-uri",
		"http://localhost:8614/callback",
		"redirect URI registered for the client")
	rootCmd.PersistentFlags().StringVar(&config.APIBaseURL, "api-url",
		"",
		"base URL of the measurement backend")
	rootCmd.PersistentFlags().StringVar(&config.GroupsClaim, "groups-claim",
		"cognito:groups",
		"token claim holding the group memberships")
	rootCmd.PersistentFlags().StringVar(&config.StorageDir, "storage-dir",
		"",
		"directory for persisted credentials (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&config.LogLevel, "log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat, "log-format",
		"text",
		"controls the log output format (text, json)")
	rootCmd.PersistentFlags().StringVar(&config.LogConfig, "log-config",
		"",
		"zapfilter rules for per-subsystem log levels")

	// add commands here
	rootCmd.AddCommand(loginCmd.NewLoginCmd())
	rootCmd.AddCommand(logoutCmd.NewLogoutCmd())
	rootCmd.AddCommand(statusCmd.NewStatusCmd())
	rootCmd.AddCommand(devicesCmd.NewDevicesCmd())
	rootCmd.AddCommand(watchCmd.NewWatchCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".btm" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".btm")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --client-id to BTM_CLIENT_ID
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
