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

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage IAM access policies",
	}
	cmd.AddCommand(newPolicyCreateCommand())
	return cmd
}

// policyCreateDeps holds the injectable dependencies for policy create.
type policyCreateDeps struct {
	policies lakeaws.PolicyAPI
}

func newPolicyCreateCommand() *cobra.Command {
	return newPolicyCreateCommandWithDeps(nil)
}

// newPolicyCreateCommandWithDeps creates the command with explicit
// dependencies for testing.
func newPolicyCreateCommandWithDeps(deps *policyCreateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create (or fetch) the S3 access policy for a set of buckets",
		Long: "Create an IAM policy granting bucket listing and home-directory " +
			"object access for the given buckets. If a policy with the same name " +
			"already exists, its ARN is returned instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runPolicyCreate(cmd, args[0], deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			start := time.Now()
			err := runPolicyCreate(cmd, args[0], &policyCreateDeps{policies: clients.iamClient})
			clients.log("iam", "CreatePolicy", start, err)
			if err == nil {
				clients.audit("policy create", "")
			}
			return err
		},
	}
	cmd.Flags().StringArray("bucket", nil, "Bucket the policy grants access to (repeatable)")
	_ = cmd.MarkFlagRequired("bucket")
	return cmd
}

func runPolicyCreate(cmd *cobra.Command, name string, deps *policyCreateDeps) error {
	ctx := cmdContext(cmd)

	buckets, err := cmd.Flags().GetStringArray("bucket")
	if err != nil {
		return err
	}
	if len(buckets) == 0 {
		return fmt.Errorf("at least one --bucket is required")
	}

	doc := access.S3AccessPolicy(buckets)
	policy, err := access.EnsurePolicy(ctx, deps.policies, name, doc)
	if err != nil {
		return fmt.Errorf("ensuring policy %q: %w", name, err)
	}

	cliCtx := cli.FromCommand(cmd)
	if cliCtx != nil && cliCtx.JSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{"name": policy.Name, "arn": policy.ARN})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Policy %q ready: %s\n", policy.Name, policy.ARN)
	return nil
}
