package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/opensync/syftsync/internal/config"
	"github.com/opensync/syftsync/internal/logging"
	"github.com/opensync/syftsync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	home, _          = os.UserHomeDir()
	defaultDataDir   = config.DefaultDataDir
	defaultServerURL = config.DefaultServerURL
	configFileName   = "config"
)

var rootCmd = &cobra.Command{
	Use:     "syftsync",
	Short:   "Peer-to-peer datasite sync client",
	Version: version.Detailed(),
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("email", "e", "", "Email for the datasite")
	rootCmd.PersistentFlags().StringP("datadir", "d", defaultDataDir, "Datasites data directory")
	rootCmd.PersistentFlags().StringP("server", "s", defaultServerURL, "Sync server URL")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "Config file path")
}

func main() {
	closeLog, err := logging.Setup(config.DefaultLogFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig binds viper to the resolved config file plus flags/env, the
// same precedence order the client has always used: flag > env > file >
// default.
func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".syftbox"))
		viper.AddConfigPath(filepath.Join(home, ".config", "syftbox"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("email", cmd.Flags().Lookup("email"))
	viper.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))
	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))

	viper.SetEnvPrefix("SYFTBOX")
	viper.AutomaticEnv()

	return nil
}

// loadedConfig builds and validates a Config from whatever loadConfig bound
// into viper.
func loadedConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := loadConfig(cmd); err != nil {
		return nil, err
	}

	cfg := &config.Config{
		Path:          viper.ConfigFileUsed(),
		Email:         viper.GetString("email"),
		DataDir:       viper.GetString("data_dir"),
		ServerURL:     viper.GetString("server_url"),
		ClientURL:     viper.GetString("client_url"),
		RefreshToken:  viper.GetString("refresh_token"),
		SyncInterval:  viper.GetDuration("sync_interval"),
		MaxUploadSize: viper.GetInt64("max_upload_size"),
	}
	if cfg.Path == "" {
		cfg.Path = config.DefaultConfigPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
