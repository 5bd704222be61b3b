// ABOUTME: Config command group for writing and inspecting maillog settings
// ABOUTME: init writes a default config file; show prints the effective config

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/maillog/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a default config file",
	Annotations: map[string]string{skipConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		allowedFrom, _ := cmd.Flags().GetString("allowed-from")

		path := cfgPath
		if path == "" {
			path = config.GetConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}

		cfg := config.Default()
		cfg.AllowedFrom = allowedFrom
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config",
	Long:  "Print the config after file values, environment overrides, and defaults are merged. Secrets are never printed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(appConfig, "", "  ")
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, string(data))

		faint := color.New(color.Faint).SprintFunc()
		fmt.Fprintln(out)
		fmt.Fprintf(out, "journal:    %s\n", orNone(appConfig.GetJournalPath()))
		fmt.Fprintf(out, "cloudinary: %s\n", faint(credentialState(appConfig.Cloudinary.CloudName != "" && appConfig.Cloudinary.APISecret != "")))
		fmt.Fprintf(out, "minio:      %s\n", faint(credentialState(appConfig.MinIO.Endpoint != "" && appConfig.MinIO.SecretKey != "")))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")
	configInitCmd.Flags().String("allowed-from", "", "sender address whose mail is treated as commands")
}

func credentialState(set bool) string {
	if set {
		return "credentials set"
	}
	return "credentials not set"
}

func orNone(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}
