package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nicholasgasior/lakegate/internal/cli"
	"github.com/spf13/cobra"
)

// NewRootCommand creates and returns the root cobra command with all global
// persistent flags registered. Subcommands are attached here.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lakegate",
		Short:         "Provision and use S3-backed SFTP data-lake endpoints",
		Long:          "Provision S3 buckets, IAM access roles, and AWS Transfer Family SFTP servers, and upload files through them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := cli.NewCLIContext(cmd)
			ctx := cli.WithContext(context.Background(), cliCtx)

			if commandNeedsAWS(cmd.Name()) {
				clients, err := initAWSClients(ctx, cmd)
				if err != nil {
					if cliCtx.JSON {
						return writeJSONError(cmd, err)
					}
					return err
				}
				ctx = contextWithAWSClients(ctx, clients)
			}

			cmd.SetContext(ctx)
			return nil
		},
	}

	// Global flags matching CLI UX conventions
	rootCmd.PersistentFlags().Bool("verbose", false, "Show progress steps")
	rootCmd.PersistentFlags().Bool("debug", false, "Show AWS SDK details")
	rootCmd.PersistentFlags().Bool("json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().Bool("yes", false, "Skip confirmation on destructive operations")
	rootCmd.PersistentFlags().String("access-key", "", "Static access key ID for a secondary account")
	rootCmd.PersistentFlags().String("secret-key", "", "Static secret access key for a secondary account")

	// Register subcommands
	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newSetupCommand())
	rootCmd.AddCommand(newBucketCommand())
	rootCmd.AddCommand(newPolicyCommand())
	rootCmd.AddCommand(newRoleCommand())
	rootCmd.AddCommand(newServerCommand())
	rootCmd.AddCommand(newUserCommand())
	rootCmd.AddCommand(newPutCommand())
	rootCmd.AddCommand(newUpdateCommand())

	return rootCmd
}

// writeJSONError emits {"error": msg} on stdout and returns a silentExitError
// so main.go exits non-zero without printing a duplicate plaintext message.
func writeJSONError(cmd *cobra.Command, err error) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(map[string]string{"error": err.Error()}); encErr != nil {
		return fmt.Errorf("%v (additionally, JSON encoding failed: %v)", err, encErr)
	}
	return silentExitError{}
}

// Execute creates the root command and runs it. Called from main.
func Execute() error {
	return NewRootCommand().Execute()
}
