// Package cmd provides CLI commands for lakegate.
// This file defines the shared AWS client infrastructure used by
// PersistentPreRunE to initialize SDK clients once and share them
// across subcommands via context.
package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/transfer"
	"github.com/spf13/cobra"

	"github.com/nicholasgasior/lakegate/internal/account"
	"github.com/nicholasgasior/lakegate/internal/cli"
	"github.com/nicholasgasior/lakegate/internal/config"
	"github.com/nicholasgasior/lakegate/internal/identity"
	"github.com/nicholasgasior/lakegate/internal/logging"
	lakegatetransfer "github.com/nicholasgasior/lakegate/internal/transfer"
)

// awsClients holds pre-initialized AWS SDK clients and resolved identity.
// Created once in PersistentPreRunE and stored on the command context.
type awsClients struct {
	s3Client       *s3.Client
	iamClient      *iam.Client
	transferClient *transfer.Client
	cfnClient      *cloudformation.Client

	caller *identity.Caller
	region string

	// lakegateConfig holds the loaded user preferences: region, persisted
	// server ID, security policy, and poll tuning.
	lakegateConfig *config.Config

	logger  logging.Logger
	auditor logging.Auditor
}

// awsClientsKey is the context key for storing awsClients.
type awsClientsKey struct{}

// awsClientsFromContext retrieves the awsClients from the context.
// Returns nil if no clients have been stored.
func awsClientsFromContext(ctx context.Context) *awsClients {
	v, _ := ctx.Value(awsClientsKey{}).(*awsClients)
	return v
}

// contextWithAWSClients returns a new context carrying the given awsClients.
func contextWithAWSClients(ctx context.Context, clients *awsClients) context.Context {
	return context.WithValue(ctx, awsClientsKey{}, clients)
}

// commandNeedsAWS returns true if the command requires AWS client
// initialization. Commands that operate locally (version, config, help)
// return false.
func commandNeedsAWS(cmdName string) bool {
	switch cmdName {
	case "version", "config", "set", "get", "update", "help", "completion":
		return false
	default:
		return true
	}
}

// initAWSClients loads the AWS SDK config, creates all SDK clients,
// resolves the caller identity, and loads the lakegate config. When the
// --access-key/--secret-key flags are set, static credentials for a
// secondary account are used instead of the default credential chain.
func initAWSClients(ctx context.Context, cmd *cobra.Command) (*awsClients, error) {
	configDir := config.DefaultConfigDir()

	lakeCfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load lakegate config: %w", err)
	}

	accessKey, _ := cmd.Flags().GetString("access-key")
	secretKey, _ := cmd.Flags().GetString("secret-key")
	if (accessKey == "") != (secretKey == "") {
		return nil, fmt.Errorf("--access-key and --secret-key must be given together")
	}

	cfg, err := loadAWSConfig(ctx, accessKey, secretKey, lakeCfg.Region)
	if err != nil {
		return nil, err
	}

	stsClient := sts.NewFromConfig(cfg)
	resolver := identity.NewResolver(stsClient)
	caller, err := resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	debug := false
	if cliCtx := cli.FromContext(ctx); cliCtx != nil {
		debug = cliCtx.Debug
	}
	logger, err := logging.NewStructuredLogger(filepath.Join(configDir, "logs"), debug)
	if err != nil {
		return nil, fmt.Errorf("open call log: %w", err)
	}
	auditor, err := logging.NewAuditLogger(filepath.Join(configDir, "audit.log"))
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &awsClients{
		s3Client:       s3.NewFromConfig(cfg),
		iamClient:      iam.NewFromConfig(cfg),
		transferClient: transfer.NewFromConfig(cfg),
		cfnClient:      cloudformation.NewFromConfig(cfg),
		caller:         caller,
		region:         cfg.Region,
		lakegateConfig: lakeCfg,
		logger:         logger,
		auditor:        auditor,
	}, nil
}

// loadAWSConfig builds the SDK config from either static secondary-account
// credentials or the default chain, pinning the configured region when set.
func loadAWSConfig(ctx context.Context, accessKey, secretKey, region string) (aws.Config, error) {
	if accessKey != "" {
		return account.Config(ctx, accessKey, secretKey, region)
	}

	var opts []func(*awscfg.LoadOptions) error
	if region != "" {
		opts = append(opts, awscfg.WithRegion(region))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("load AWS config: %w", err)
	}
	return cfg, nil
}

// pollConfig returns the configured poll tuning, falling back to package
// defaults when unset.
func (c *awsClients) pollConfig() lakegatetransfer.PollConfig {
	pc := lakegatetransfer.DefaultPollConfig()
	if c.lakegateConfig == nil {
		return pc
	}
	if c.lakegateConfig.PollIntervalSeconds > 0 {
		pc.Interval = time.Duration(c.lakegateConfig.PollIntervalSeconds) * time.Second
	}
	if c.lakegateConfig.PollTimeoutMinutes > 0 {
		pc.Timeout = time.Duration(c.lakegateConfig.PollTimeoutMinutes) * time.Minute
	}
	return pc
}

// log records a single AWS API call in the structured call log.
func (c *awsClients) log(service, operation string, start time.Time, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Log(service, operation, time.Since(start), err)
}

// audit appends a command invocation to the audit log. Audit failures never
// fail the command itself.
func (c *awsClients) audit(command, serverID string) {
	if c.auditor == nil {
		return
	}
	callerARN := ""
	if c.caller != nil {
		callerARN = c.caller.ARN
	}
	_ = c.auditor.LogCommand(command, serverID, callerARN)
}
