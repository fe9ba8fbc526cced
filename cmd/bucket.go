package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	lakeaws "github.com/nicholasgasior/lakegate/internal/aws"
	"github.com/nicholasgasior/lakegate/internal/cli"
	"github.com/nicholasgasior/lakegate/internal/storage"
)

func newBucketCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bucket",
		Short: "Manage data-lake S3 buckets",
	}
	cmd.AddCommand(newBucketCreateCommand())
	cmd.AddCommand(newBucketListCommand())
	cmd.AddCommand(newBucketDeleteCommand())
	return cmd
}

// ---------------------------------------------------------------------------
// bucket create
// ---------------------------------------------------------------------------

// bucketCreateDeps holds the injectable dependencies for bucket create.
type bucketCreateDeps struct {
	buckets lakeaws.S3BucketAPI
	region  string
}

func newBucketCreateCommand() *cobra.Command {
	return newBucketCreateCommandWithDeps(nil)
}

// newBucketCreateCommandWithDeps creates the command with explicit
// dependencies for testing.
func newBucketCreateCommandWithDeps(deps *bucketCreateDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an S3 bucket with public access blocked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runBucketCreate(cmd, args[0], deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			start := time.Now()
			err := runBucketCreate(cmd, args[0], &bucketCreateDeps{
				buckets: clients.s3Client,
				region:  clients.region,
			})
			clients.log("s3", "CreateBucket", start, err)
			if err == nil {
				clients.audit("bucket create", "")
			}
			return err
		},
	}
}

func runBucketCreate(cmd *cobra.Command, name string, deps *bucketCreateDeps) error {
	ctx := cmdContext(cmd)

	if deps.region == "" {
		return fmt.Errorf("no region configured; run \"lakegate config set region <region>\"")
	}

	if err := storage.CreateBucket(ctx, deps.buckets, name, deps.region); err != nil {
		return fmt.Errorf("creating bucket %q: %w", name, err)
	}

	cliCtx := cli.FromCommand(cmd)
	if cliCtx != nil && cliCtx.JSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{"bucket": name, "region": deps.region})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Bucket %q created in %s.\n", name, deps.region)
	return nil
}

// ---------------------------------------------------------------------------
// bucket list
// ---------------------------------------------------------------------------

// bucketListDeps holds the injectable dependencies for bucket list.
type bucketListDeps struct {
	buckets lakeaws.ListBucketsAPI
}

func newBucketListCommand() *cobra.Command {
	return newBucketListCommandWithDeps(nil)
}

func newBucketListCommandWithDeps(deps *bucketListDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all buckets in the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runBucketList(cmd, deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			start := time.Now()
			err := runBucketList(cmd, &bucketListDeps{buckets: clients.s3Client})
			clients.log("s3", "ListBuckets", start, err)
			return err
		},
	}
}

func runBucketList(cmd *cobra.Command, deps *bucketListDeps) error {
	ctx := cmdContext(cmd)

	names, err := storage.ListBuckets(ctx, deps.buckets)
	if err != nil {
		return fmt.Errorf("listing buckets: %w", err)
	}

	w := cmd.OutOrStdout()

	cliCtx := cli.FromCommand(cmd)
	if cliCtx != nil && cliCtx.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(names)
	}

	if len(names) == 0 {
		fmt.Fprintln(w, "No buckets found.")
		return nil
	}
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
	return nil
}

// ---------------------------------------------------------------------------
// bucket delete
// ---------------------------------------------------------------------------

// bucketDeleteDeps holds the injectable dependencies for bucket delete.
type bucketDeleteDeps struct {
	buckets lakeaws.DeleteBucketAPI
}

func newBucketDeleteCommand() *cobra.Command {
	return newBucketDeleteCommandWithDeps(nil)
}

func newBucketDeleteCommandWithDeps(deps *bucketDeleteDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an S3 bucket",
		Long:  "Delete an S3 bucket. The bucket must be empty. Requires confirmation unless --yes is set.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runBucketDelete(cmd, args[0], deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			start := time.Now()
			err := runBucketDelete(cmd, args[0], &bucketDeleteDeps{buckets: clients.s3Client})
			clients.log("s3", "DeleteBucket", start, err)
			if err == nil {
				clients.audit("bucket delete", "")
			}
			return err
		},
	}
}

func runBucketDelete(cmd *cobra.Command, name string, deps *bucketDeleteDeps) error {
	ctx := cmdContext(cmd)

	cliCtx := cli.FromCommand(cmd)
	yes := cliCtx != nil && cliCtx.Yes

	w := cmd.OutOrStdout()

	// Confirmation: require the user to type the bucket name unless --yes.
	if !yes {
		fmt.Fprintf(w, "This will permanently delete bucket %q.\n", name)
		fmt.Fprintf(w, "Type the bucket name %q to confirm: ", name)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		if !scanner.Scan() {
			return fmt.Errorf("no confirmation input received; delete aborted")
		}
		input := strings.TrimSpace(scanner.Text())
		if input != name {
			return fmt.Errorf("confirmation %q does not match bucket name %q; delete aborted", input, name)
		}
	}

	if err := storage.DeleteBucket(ctx, deps.buckets, name); err != nil {
		return fmt.Errorf("deleting bucket %q: %w", name, err)
	}

	if cliCtx != nil && cliCtx.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{"deleted": name})
	}

	fmt.Fprintf(w, "Bucket %q deleted.\n", name)
	return nil
}

// cmdContext returns the command's context, falling back to Background for
// commands constructed directly in tests.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
