// Package config provides CLI commands for inspecting syt configuration.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/syt-tools/syt/internal/config"
)

// Register adds the config command to parent. v is the viper instance the
// root command loads configuration into.
func Register(parent *cobra.Command, v *viper.Viper) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View syt configuration",
		Long: `View syt configuration.

Without a subcommand, displays the effective configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, v)
		},
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, v)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigPath(cmd, v)
		},
	})
	parent.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := appconfig.LoadFrom(v)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if v.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", v.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigPath(cmd *cobra.Command, v *viper.Viper) error {
	out := cmd.OutOrStdout()
	if v.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", v.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", appconfig.ConfigFile())
	}
	fmt.Fprintln(out, "\nEnvironment variables: SYT_* (e.g., SYT_REPOSITORY_URL, SYT_AUTH_USERNAME)")
	return nil
}
