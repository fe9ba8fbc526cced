package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/nicholasgasior/lakegate/internal/cli"
	"github.com/nicholasgasior/lakegate/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display current configuration",
		Long:  "Display all lakegate configuration values. Uses ~/.config/lakegate/config.toml.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir := config.DefaultConfigDir()
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}

			cliCtx := cli.FromCommand(cmd)
			if cliCtx != nil && cliCtx.JSON {
				return printConfigJSON(cmd, cfg)
			}

			return printConfigHuman(cmd, cfg)
		},
	}

	cmd.AddCommand(newConfigGetCommand())
	cmd.AddCommand(newConfigSetCommand())

	return cmd
}

func printConfigJSON(cmd *cobra.Command, cfg *config.Config) error {
	data := map[string]any{
		"region":                cfg.Region,
		"server_id":             cfg.ServerID,
		"security_policy":       cfg.SecurityPolicy,
		"poll_interval_seconds": cfg.PollIntervalSeconds,
		"poll_timeout_minutes":  cfg.PollTimeoutMinutes,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printConfigHuman(cmd *cobra.Command, cfg *config.Config) error {
	w := cmd.OutOrStdout()

	region := cfg.Region
	if region == "" {
		region = "(not set)"
	}
	serverID := cfg.ServerID
	if serverID == "" {
		serverID = "(not set)"
	}

	_, err := fmt.Fprintf(w,
		"region                %s\n"+
			"server_id             %s\n"+
			"security_policy       %s\n"+
			"poll_interval_seconds %d\n"+
			"poll_timeout_minutes  %d\n",
		region,
		serverID,
		cfg.SecurityPolicy,
		cfg.PollIntervalSeconds,
		cfg.PollTimeoutMinutes,
	)
	return err
}
