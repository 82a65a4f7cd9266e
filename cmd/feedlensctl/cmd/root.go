// Package cmd implements the feedlensctl command tree.
package cmd

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/feedlens/internal/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultServer = "http://localhost:8080"

var (
	cfgFile    string
	serverURL  string
	jsonOutput bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "feedlensctl",
	Short: "Drive feedback analysis on a Feedlens server",
	Long: `feedlensctl runs AI-assisted analysis of user feedback reports against a
Feedlens server: start or continue an analysis, answer clarifying questions,
hand questions back to the reporter, and generate follow-up documents.

The server address is taken from --server, FEEDLENS_SERVER, or the "server"
key in $HOME/.config/feedlens/config.yaml.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initConfig()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func SetVersion(version string) {
	rootCmd.Version = version
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: $HOME/.config/feedlens/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer,
		"Feedlens server base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"print raw JSON instead of tables")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout,
		"request timeout; analysis rounds wait for the provider")

	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME/.config/feedlens")
	}

	viper.SetEnvPrefix("FEEDLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// newClient builds an API client from the resolved server settings.
func newClient() *client.Client {
	server := viper.GetString("server")
	if server == "" {
		server = defaultServer
	}
	return client.New(server, &http.Client{Timeout: viper.GetDuration("timeout")})
}
