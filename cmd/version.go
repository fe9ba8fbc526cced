package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/lakegate/internal/cli"
	"github.com/nicholasgasior/lakegate/internal/config"
	versioncheck "github.com/nicholasgasior/lakegate/internal/version"
)

// Build-time variables injected via ldflags. Dev defaults used when building
// without ldflags (e.g., go run, go test).
//
// Set at build time with:
//
//	go build -ldflags "-X github.com/nicholasgasior/lakegate/cmd.version=1.0.0
//	  -X github.com/nicholasgasior/lakegate/cmd.commit=abc1234
//	  -X github.com/nicholasgasior/lakegate/cmd.date=2026-01-15"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// versionJSON is the JSON representation of version information.
type versionJSON struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of lakegate",
		Long:  "Print the version, commit hash, and build date of this lakegate binary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := cli.FromCommand(cmd)
			if cliCtx != nil && cliCtx.JSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(versionJSON{
					Version: version,
					Commit:  commit,
					Date:    date,
				})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(),
				"lakegate version: %s\ncommit: %s\ndate: %s\n",
				version, commit, date,
			)
			if err != nil {
				return err
			}

			// Best-effort update check. Fails open on any error.
			if info, _ := versioncheck.Check(version, config.DefaultConfigDir()); info != nil && info.UpdateAvailable {
				fmt.Fprintf(cmd.ErrOrStderr(),
					"\nA newer version (%s) is available: https://github.com/nicholasgasior/lakegate/releases\n",
					info.LatestVersion,
				)
			}
			return nil
		},
	}
}
