package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/lakegate/internal/admin"
	"github.com/nicholasgasior/lakegate/internal/cli"
)

// stackDeployer abstracts admin.Deployer for test injection.
type stackDeployer interface {
	Deploy(ctx context.Context, opts admin.DeployOptions) (*admin.DeployResult, error)
}

// setupDeps holds the injectable dependencies for setup.
type setupDeps struct {
	deployer stackDeployer
}

func newSetupCommand() *cobra.Command {
	return newSetupCommandWithDeps(nil)
}

// newSetupCommandWithDeps creates the setup command with explicit
// dependencies for testing.
func newSetupCommandWithDeps(deps *setupDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Provision the CloudWatch logging role stack",
		Long: "Create or update the CloudFormation stack that provisions the " +
			"CloudWatch logging role assumed by transfer servers. Safe to re-run; " +
			"an up-to-date stack is a no-op.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runSetup(cmd, deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			deployer := admin.NewDeployer(
				clients.cfnClient,
				clients.cfnClient,
				clients.cfnClient,
				clients.cfnClient,
			)
			start := time.Now()
			err := runSetup(cmd, &setupDeps{deployer: deployer})
			clients.log("cloudformation", "Deploy", start, err)
			if err == nil {
				clients.audit("setup", "")
			}
			return err
		},
	}
	cmd.Flags().String("stack-name", "", "CloudFormation stack name (default lakegate-setup)")
	cmd.Flags().String("role-name", "", "Logging role name (default lakegate-transfer-logging)")
	return cmd
}

func runSetup(cmd *cobra.Command, deps *setupDeps) error {
	ctx := cmdContext(cmd)

	stackName, err := cmd.Flags().GetString("stack-name")
	if err != nil {
		return err
	}
	roleName, err := cmd.Flags().GetString("role-name")
	if err != nil {
		return err
	}

	cliCtx := cli.FromCommand(cmd)
	verbose := cliCtx != nil && cliCtx.Verbose
	jsonOut := cliCtx != nil && cliCtx.JSON

	opts := admin.DeployOptions{
		StackName: stackName,
		RoleName:  roleName,
	}
	// Stream stack events in verbose human mode only.
	if verbose && !jsonOut {
		opts.EventWriter = cmd.OutOrStdout()
	}

	result, err := deps.deployer.Deploy(ctx, opts)
	if err != nil {
		return fmt.Errorf("deploying setup stack: %w", err)
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{
			"stack_name":       result.StackName,
			"logging_role_arn": result.LoggingRoleArn,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stack %s ready.\nLogging role: %s\n", result.StackName, result.LoggingRoleArn)
	return nil
}
