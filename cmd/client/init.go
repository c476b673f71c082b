package main

import (
	"fmt"
	"io"
	"net/mail"

	"github.com/opensync/syftsync/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var email string
	var dataDir string
	var serverURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Bootstrap a datasite and config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			configPath := resolveConfigPath(cmd)

			if cfg, err := config.LoadFromFile(configPath); err == nil {
				fmt.Fprintln(out, "Datasite already initialized")
				printConfigSummary(out, cfg)
				return nil
			}

			if email == "" {
				fmt.Fprint(out, "Enter your email: ")
				fmt.Scanln(&email)
			}
			if _, err := mail.ParseAddress(email); err != nil {
				return fmt.Errorf("invalid email: %w", err)
			}

			cfg := &config.Config{
				Email:     email,
				DataDir:   dataDir,
				ServerURL: serverURL,
				Path:      configPath,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}

			fmt.Fprintln(out, "Datasite initialized")
			printConfigSummary(out, cfg)
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email for the datasite")
	cmd.Flags().StringVarP(&dataDir, "datadir", "d", defaultDataDir, "Datasites data directory")
	cmd.Flags().StringVarP(&serverURL, "server", "s", defaultServerURL, "Sync server URL")

	return cmd
}

func printConfigSummary(out io.Writer, cfg *config.Config) {
	fmt.Fprintf(out, "Config Path: %s\n", cfg.Path)
	fmt.Fprintf(out, "Email:       %s\n", cfg.Email)
	fmt.Fprintf(out, "Data Dir:    %s\n", cfg.DataDir)
	fmt.Fprintf(out, "Server:      %s\n", cfg.ServerURL)
}
