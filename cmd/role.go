package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/lakegate/internal/access"
	lakeaws "github.com/nicholasgasior/lakegate/internal/aws"
	"github.com/nicholasgasior/lakegate/internal/cli"
)

func newRoleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage IAM service roles",
	}
	cmd.AddCommand(newRoleCreateCommand())
	return cmd
}

// roleCreateDeps holds the injectable dependencies for role create.
type roleCreateDeps struct {
	roles  lakeaws.RoleAPI
	attach lakeaws.AttachRolePolicyAPI
}

func newRoleCreateCommand() *cobra.Command {
	return newRoleCreateCommandWithDeps(nil)
}

// newRoleCreateCommandWithDeps creates the command with explicit
// dependencies for testing.
func newRoleCreateCommandWithDeps(deps *roleCreateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create (or fetch) a service role and attach policies",
		Long: "Create an IAM role assumable by the given AWS service and attach " +
			"the listed managed policies. If the role already exists it is fetched " +
			"and the policies are still attached.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runRoleCreate(cmd, args[0], deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			start := time.Now()
			err := runRoleCreate(cmd, args[0], &roleCreateDeps{
				roles:  clients.iamClient,
				attach: clients.iamClient,
			})
			clients.log("iam", "CreateRole", start, err)
			if err == nil {
				clients.audit("role create", "")
			}
			return err
		},
	}
	cmd.Flags().String("service", "transfer", "AWS service allowed to assume the role")
	cmd.Flags().StringArray("attach-policy", nil, "Managed policy ARN to attach (repeatable)")
	return cmd
}

func runRoleCreate(cmd *cobra.Command, name string, deps *roleCreateDeps) error {
	ctx := cmdContext(cmd)

	service, err := cmd.Flags().GetString("service")
	if err != nil {
		return err
	}
	policyARNs, err := cmd.Flags().GetStringArray("attach-policy")
	if err != nil {
		return err
	}

	role, err := access.EnsureRole(ctx, deps.roles, name, service)
	if err != nil {
		return fmt.Errorf("ensuring role %q: %w", name, err)
	}

	if len(policyARNs) > 0 {
		if err := access.AttachPolicies(ctx, deps.attach, role.Name, policyARNs, cmd.ErrOrStderr()); err != nil {
			return fmt.Errorf("attaching policies to role %q: %w", role.Name, err)
		}
	}

	cliCtx := cli.FromCommand(cmd)
	if cliCtx != nil && cliCtx.JSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"name":     role.Name,
			"arn":      role.ARN,
			"attached": policyARNs,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Role %q ready: %s\n", role.Name, role.ARN)
	for _, arn := range policyARNs {
		fmt.Fprintf(cmd.OutOrStdout(), "  attached %s\n", arn)
	}
	return nil
}
