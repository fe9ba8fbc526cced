// Package e2e_test contains end-to-end workflow tests for the lakegate CLI.
//
// These tests exercise the full command pipeline (cobra → cmd → internal
// packages) using real in-process execution with a mock AWS layer. No real
// AWS calls are made — all AWS dependencies are stubbed via the narrow
// interfaces defined in internal/aws.
//
// Design: a testEnv builds a cobra command tree that mirrors the real
// lakegate CLI but wires mock AWS clients (stubs returning deterministic
// responses) instead of real SDK clients. For non-AWS commands (version,
// config, config set), the real cmd.NewRootCommand() is used directly since
// those commands make no AWS calls.
package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/transfer"
	transfertypes "github.com/aws/aws-sdk-go-v2/service/transfer/types"
	"github.com/spf13/cobra"

	"github.com/nicholasgasior/lakegate/internal/access"
	"github.com/nicholasgasior/lakegate/internal/cli"
	"github.com/nicholasgasior/lakegate/internal/storage"
	laketransfer "github.com/nicholasgasior/lakegate/internal/transfer"
)

// ---------------------------------------------------------------------------
// testEnv — end-to-end test harness
// ---------------------------------------------------------------------------

// testEnv holds a complete, mock-backed command tree and provides a
// RunCommand helper for executing commands and inspecting output.
type testEnv struct {
	t    *testing.T
	root *cobra.Command
}

// RunCommand executes the command defined by args against the test harness.
// It returns stdout, stderr, and any execution error.
func (e *testEnv) RunCommand(args []string) (stdout, stderr string, err error) {
	e.t.Helper()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	e.root.SetOut(outBuf)
	e.root.SetErr(errBuf)
	e.root.SetArgs(args)
	execErr := e.root.Execute()
	return outBuf.String(), errBuf.String(), execErr
}

// ---------------------------------------------------------------------------
// Stub AWS clients — implement narrow interfaces from internal/aws
// ---------------------------------------------------------------------------

// stubS3 records created buckets and serves them back from ListBuckets.
type stubS3 struct {
	created []string
	blocked []string
	deleted []string
}

func (s *stubS3) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	s.created = append(s.created, aws.ToString(params.Bucket))
	return &s3.CreateBucketOutput{}, nil
}

func (s *stubS3) PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error) {
	s.blocked = append(s.blocked, aws.ToString(params.Bucket))
	return &s3.PutPublicAccessBlockOutput{}, nil
}

func (s *stubS3) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	buckets := make([]s3types.Bucket, 0, len(s.created))
	for _, name := range s.created {
		buckets = append(buckets, s3types.Bucket{Name: aws.String(name)})
	}
	return &s3.ListBucketsOutput{Buckets: buckets}, nil
}

func (s *stubS3) DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	s.deleted = append(s.deleted, aws.ToString(params.Bucket))
	return &s3.DeleteBucketOutput{}, nil
}

// stubIAM serves policy and role creation with deterministic ARNs.
type stubIAM struct {
	policies []string
	roles    []string
	attached []string
}

func (s *stubIAM) CreatePolicy(ctx context.Context, params *iam.CreatePolicyInput, optFns ...func(*iam.Options)) (*iam.CreatePolicyOutput, error) {
	name := aws.ToString(params.PolicyName)
	s.policies = append(s.policies, name)
	return &iam.CreatePolicyOutput{Policy: &iamtypes.Policy{
		PolicyName: params.PolicyName,
		Arn:        aws.String("arn:aws:iam::123456789012:policy/" + name),
	}}, nil
}

func (s *stubIAM) ListPolicies(ctx context.Context, params *iam.ListPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListPoliciesOutput, error) {
	return &iam.ListPoliciesOutput{}, nil
}

func (s *stubIAM) CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	name := aws.ToString(params.RoleName)
	s.roles = append(s.roles, name)
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{
		RoleName: params.RoleName,
		Arn:      aws.String("arn:aws:iam::123456789012:role/" + name),
	}}, nil
}

func (s *stubIAM) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	name := aws.ToString(params.RoleName)
	return &iam.GetRoleOutput{Role: &iamtypes.Role{
		RoleName: params.RoleName,
		Arn:      aws.String("arn:aws:iam::123456789012:role/" + name),
	}}, nil
}

func (s *stubIAM) AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	s.attached = append(s.attached, aws.ToString(params.PolicyArn))
	return &iam.AttachRolePolicyOutput{}, nil
}

// stubTransfer manages a single server whose state walks the states slice on
// successive DescribeServer calls (the last state repeats).
type stubTransfer struct {
	serverID string

	states        []transfertypes.State
	describeCalls int

	createCalls int
	createInput *transfer.CreateServerInput
	startCalls  int
	stopCalls   int

	users []string
}

func (s *stubTransfer) CreateServer(ctx context.Context, params *transfer.CreateServerInput, optFns ...func(*transfer.Options)) (*transfer.CreateServerOutput, error) {
	s.createCalls++
	s.createInput = params
	return &transfer.CreateServerOutput{ServerId: aws.String(s.serverID)}, nil
}

func (s *stubTransfer) DescribeServer(ctx context.Context, params *transfer.DescribeServerInput, optFns ...func(*transfer.Options)) (*transfer.DescribeServerOutput, error) {
	i := s.describeCalls
	if i >= len(s.states) {
		i = len(s.states) - 1
	}
	s.describeCalls++
	return &transfer.DescribeServerOutput{Server: &transfertypes.DescribedServer{
		ServerId: aws.String(s.serverID),
		State:    s.states[i],
	}}, nil
}

func (s *stubTransfer) StartServer(ctx context.Context, params *transfer.StartServerInput, optFns ...func(*transfer.Options)) (*transfer.StartServerOutput, error) {
	s.startCalls++
	return &transfer.StartServerOutput{}, nil
}

func (s *stubTransfer) StopServer(ctx context.Context, params *transfer.StopServerInput, optFns ...func(*transfer.Options)) (*transfer.StopServerOutput, error) {
	s.stopCalls++
	return &transfer.StopServerOutput{}, nil
}

func (s *stubTransfer) CreateUser(ctx context.Context, params *transfer.CreateUserInput, optFns ...func(*transfer.Options)) (*transfer.CreateUserOutput, error) {
	s.users = append(s.users, aws.ToString(params.UserName))
	return &transfer.CreateUserOutput{
		ServerId: params.ServerId,
		UserName: params.UserName,
	}, nil
}

// ---------------------------------------------------------------------------
// e2eConfig — wiring for a full mock-backed command tree
// ---------------------------------------------------------------------------

// e2eConfig carries the stubs and fixed identity shared by all mock-backed
// commands in one workflow.
type e2eConfig struct {
	s3       *stubS3
	iam      *stubIAM
	transfer *stubTransfer

	region   string
	owner    string
	ownerARN string

	// serverID is the "stored" default server ID, mirroring the config file.
	serverID string
}

func fastPoll() laketransfer.PollConfig {
	return laketransfer.PollConfig{Interval: time.Millisecond, Timeout: time.Second}
}

// ---------------------------------------------------------------------------
// newE2ERoot — builds the test command tree
// ---------------------------------------------------------------------------

// newE2ERoot constructs a complete lakegate-like cobra command tree with all
// global flags and mock-backed subcommands. It exercises the full cobra
// routing and flag-parsing pipeline while using deterministic AWS stubs.
func newE2ERoot(t *testing.T, cfg *e2eConfig) *cobra.Command {
	t.Helper()

	root := &cobra.Command{
		Use:           "lakegate",
		Short:         "Provision and use S3-backed SFTP data-lake endpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Build and store CLI context (same as the real root's
			// PersistentPreRunE, but skip real AWS initialization).
			cliCtx := cli.NewCLIContext(cmd)
			cmd.SetContext(cli.WithContext(context.Background(), cliCtx))
			return nil
		},
	}

	// Global flags — identical to cmd.NewRootCommand()
	root.PersistentFlags().Bool("verbose", false, "Show progress steps")
	root.PersistentFlags().Bool("debug", false, "Show AWS SDK details")
	root.PersistentFlags().Bool("json", false, "Machine-readable JSON output")
	root.PersistentFlags().Bool("yes", false, "Skip confirmation on destructive operations")

	root.AddCommand(newE2EBucketCommand(cfg))
	root.AddCommand(newE2EPolicyCommand(cfg))
	root.AddCommand(newE2ERoleCommand(cfg))
	root.AddCommand(newE2EServerCommand(cfg))
	root.AddCommand(newE2EUserCommand(cfg))

	return root
}

// newE2EBucketCommand builds mock-backed bucket create/list commands that
// call the same internal/storage logic used in production.
func newE2EBucketCommand(cfg *e2eConfig) *cobra.Command {
	bucket := &cobra.Command{Use: "bucket"}

	bucket.AddCommand(&cobra.Command{
		Use:  "create <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.CreateBucket(cmd.Context(), cfg.s3, args[0], cfg.region); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bucket %q created in %s.\n", args[0], cfg.region)
			return nil
		},
	})

	bucket.AddCommand(&cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := storage.ListBuckets(cmd.Context(), cfg.s3)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	})

	return bucket
}

// newE2EPolicyCommand builds a mock-backed policy create command.
func newE2EPolicyCommand(cfg *e2eConfig) *cobra.Command {
	policy := &cobra.Command{Use: "policy"}
	create := &cobra.Command{
		Use:  "create <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buckets, err := cmd.Flags().GetStringArray("bucket")
			if err != nil {
				return err
			}
			p, err := access.EnsurePolicy(cmd.Context(), cfg.iam, args[0], access.S3AccessPolicy(buckets))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Policy %q ready: %s\n", p.Name, p.ARN)
			return nil
		},
	}
	create.Flags().StringArray("bucket", nil, "Bucket the policy grants access to")
	policy.AddCommand(create)
	return policy
}

// newE2ERoleCommand builds a mock-backed role create command.
func newE2ERoleCommand(cfg *e2eConfig) *cobra.Command {
	role := &cobra.Command{Use: "role"}
	create := &cobra.Command{
		Use:  "create <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attach, err := cmd.Flags().GetStringArray("attach-policy")
			if err != nil {
				return err
			}
			r, err := access.EnsureRole(cmd.Context(), cfg.iam, args[0], "transfer")
			if err != nil {
				return err
			}
			if len(attach) > 0 {
				if err := access.AttachPolicies(cmd.Context(), cfg.iam, r.Name, attach, cmd.ErrOrStderr()); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Role %q ready: %s\n", r.Name, r.ARN)
			return nil
		},
	}
	create.Flags().StringArray("attach-policy", nil, "Policy ARN to attach")
	role.AddCommand(create)
	return role
}

// newE2EServerCommand builds mock-backed server create/start/stop/status
// commands calling internal/transfer.
func newE2EServerCommand(cfg *e2eConfig) *cobra.Command {
	server := &cobra.Command{Use: "server"}

	create := &cobra.Command{
		Use:  "create",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wait, err := cmd.Flags().GetBool("wait")
			if err != nil {
				return err
			}
			serverID, err := laketransfer.CreateServer(cmd.Context(), cfg.transfer, laketransfer.ServerConfig{
				LoggingRoleARN: "arn:aws:iam::123456789012:role/lakegate-transfer-logging",
			})
			if err != nil {
				return err
			}
			if wait {
				if err := laketransfer.WaitOnline(cmd.Context(), cfg.transfer, serverID, fastPoll(), cmd.ErrOrStderr()); err != nil {
					return err
				}
			}
			cfg.serverID = serverID
			fmt.Fprintf(cmd.OutOrStdout(), "Server %s created.\nEndpoint: %s\n",
				serverID, laketransfer.Endpoint(serverID, cfg.region))
			return nil
		},
	}
	create.Flags().Bool("wait", false, "Wait until the server reports ONLINE")
	server.AddCommand(create)

	server.AddCommand(&cobra.Command{
		Use:  "start",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := laketransfer.StartServer(cmd.Context(), cfg.transfer, cfg.serverID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server %s starting.\n", cfg.serverID)
			return nil
		},
	})

	server.AddCommand(&cobra.Command{
		Use:  "stop",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := laketransfer.StopServer(cmd.Context(), cfg.transfer, cfg.serverID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server %s stopping.\n", cfg.serverID)
			return nil
		},
	})

	server.AddCommand(&cobra.Command{
		Use:  "status",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := laketransfer.ServerState(cmd.Context(), cfg.transfer, cfg.serverID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server:   %s\nState:    %s\nEndpoint: %s\n",
				cfg.serverID, state, laketransfer.Endpoint(cfg.serverID, cfg.region))
			return nil
		},
	})

	return server
}

// newE2EUserCommand builds a mock-backed user add command.
func newE2EUserCommand(cfg *e2eConfig) *cobra.Command {
	user := &cobra.Command{Use: "user"}
	add := &cobra.Command{
		Use:  "add <username>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roleARN, err := cmd.Flags().GetString("role")
			if err != nil {
				return err
			}
			bucket, err := cmd.Flags().GetString("bucket")
			if err != nil {
				return err
			}
			err = laketransfer.AddUser(cmd.Context(), cfg.transfer, laketransfer.UserSpec{
				ServerID:      cfg.serverID,
				UserName:      args[0],
				AccessRoleARN: roleARN,
				PublicKey:     e2eTestPublicKey,
				DirectoryMappings: map[string]string{
					"/": fmt.Sprintf("/%s/%s", bucket, args[0]),
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %q added to server %s.\n", args[0], cfg.serverID)
			return nil
		},
	}
	add.Flags().String("role", "", "Access role ARN")
	add.Flags().String("bucket", "", "Home bucket")
	user.AddCommand(add)
	return user
}

const e2eTestPublicKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIOMqqnkVzrm0SdG6UOoqKLsabgH5C9okWi0dh2l9GKJl e2e@test"

// ---------------------------------------------------------------------------
// Assertion helpers
// ---------------------------------------------------------------------------

func requireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertContains(t *testing.T, label, output string, wants []string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(output, want) {
			t.Errorf("%s output missing %q\noutput:\n%s", label, want, output)
		}
	}
}

func mustUnmarshal(t *testing.T, data string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(data), v); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, data)
	}
}
