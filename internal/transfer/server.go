// Package transfer implements the AWS Transfer Family server lifecycle for
// the data lake: server creation with a pinned default profile, SFTP user
// registration with logical home-directory mappings, start/stop, and a
// bounded wait-until-online poller. All AWS dependencies are injected via
// narrow interfaces.
package transfer

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transfer"
	transfertypes "github.com/aws/aws-sdk-go-v2/service/transfer/types"

	lakeaws "github.com/nicholasgasior/lakegate/internal/aws"
)

// DefaultSecurityPolicy is the Transfer Family security policy applied when
// the caller does not override it.
const DefaultSecurityPolicy = "TransferSecurityPolicy-2020-06"

// ServerConfig describes the server to create. When Custom is non-nil it is
// sent verbatim and the remaining fields are ignored; otherwise the default
// profile is used: S3 domain, public endpoint, SFTP protocol, and
// service-managed identities.
type ServerConfig struct {
	LoggingRoleARN string
	SecurityPolicy string

	// Tags are attached to the server at creation time.
	Tags []transfertypes.Tag

	// Custom, when set, replaces the default profile entirely.
	Custom *transfer.CreateServerInput
}

// CreateServer creates a managed SFTP server and returns its server ID.
func CreateServer(ctx context.Context, client lakeaws.CreateServerAPI, cfg ServerConfig) (string, error) {
	input := cfg.Custom
	if input == nil {
		securityPolicy := cfg.SecurityPolicy
		if securityPolicy == "" {
			securityPolicy = DefaultSecurityPolicy
		}
		input = &transfer.CreateServerInput{
			Domain:               transfertypes.DomainS3,
			EndpointType:         transfertypes.EndpointTypePublic,
			Protocols:            []transfertypes.Protocol{transfertypes.ProtocolSftp},
			IdentityProviderType: transfertypes.IdentityProviderTypeServiceManaged,
			SecurityPolicyName:   aws.String(securityPolicy),
			LoggingRole:          aws.String(cfg.LoggingRoleARN),
			Tags:                 cfg.Tags,
		}
	}

	out, err := client.CreateServer(ctx, input)
	if err != nil {
		return "", fmt.Errorf("create transfer server: %w", err)
	}
	return aws.ToString(out.ServerId), nil
}

// UserSpec describes an SFTP user to register on a server. DirectoryMappings
// maps SFTP-visible entry paths to bucket-backed targets, e.g.
// "/" -> "/lake-raw/home/${transfer:UserName}".
type UserSpec struct {
	ServerID          string
	UserName          string
	AccessRoleARN     string
	PublicKey         string
	DirectoryMappings map[string]string
}

// AddUser registers an SFTP user with a logical home directory and an SSH
// public key against the given server. The server ID is required; callers
// that want a "current server" default resolve it before calling (the CLI
// keeps it in the config file).
func AddUser(ctx context.Context, client lakeaws.CreateUserAPI, spec UserSpec) error {
	if spec.ServerID == "" {
		return fmt.Errorf("add user %q: server ID is required", spec.UserName)
	}

	entries := make([]string, 0, len(spec.DirectoryMappings))
	for entry := range spec.DirectoryMappings {
		entries = append(entries, entry)
	}
	sort.Strings(entries)

	mappings := make([]transfertypes.HomeDirectoryMapEntry, 0, len(entries))
	for _, entry := range entries {
		mappings = append(mappings, transfertypes.HomeDirectoryMapEntry{
			Entry:  aws.String(entry),
			Target: aws.String(spec.DirectoryMappings[entry]),
		})
	}

	_, err := client.CreateUser(ctx, &transfer.CreateUserInput{
		ServerId:              aws.String(spec.ServerID),
		UserName:              aws.String(spec.UserName),
		Role:                  aws.String(spec.AccessRoleARN),
		SshPublicKeyBody:      aws.String(spec.PublicKey),
		HomeDirectoryType:     transfertypes.HomeDirectoryTypeLogical,
		HomeDirectoryMappings: mappings,
	})
	if err != nil {
		return fmt.Errorf("add user %q to server %s: %w", spec.UserName, spec.ServerID, err)
	}
	return nil
}

// StartServer starts a stopped server.
func StartServer(ctx context.Context, client lakeaws.StartServerAPI, serverID string) error {
	if _, err := client.StartServer(ctx, &transfer.StartServerInput{
		ServerId: aws.String(serverID),
	}); err != nil {
		return fmt.Errorf("start server %s: %w", serverID, err)
	}
	return nil
}

// StopServer stops a running server.
func StopServer(ctx context.Context, client lakeaws.StopServerAPI, serverID string) error {
	if _, err := client.StopServer(ctx, &transfer.StopServerInput{
		ServerId: aws.String(serverID),
	}); err != nil {
		return fmt.Errorf("stop server %s: %w", serverID, err)
	}
	return nil
}

// ServerState returns the current state of the server.
func ServerState(ctx context.Context, client lakeaws.DescribeServerAPI, serverID string) (transfertypes.State, error) {
	out, err := client.DescribeServer(ctx, &transfer.DescribeServerInput{
		ServerId: aws.String(serverID),
	})
	if err != nil {
		return "", fmt.Errorf("describe server %s: %w", serverID, err)
	}
	if out.Server == nil {
		return "", fmt.Errorf("describe server %s: empty response", serverID)
	}
	return out.Server.State, nil
}

// Endpoint returns the SFTP endpoint hostname for a public transfer server
// in the given region.
func Endpoint(serverID, region string) string {
	return fmt.Sprintf("%s.server.transfer.%s.amazonaws.com", serverID, region)
}
