// Package aws provides thin wrappers around AWS SDK clients used by lakegate.
// This file defines narrow interfaces for the AWS Transfer Family operations
// behind the server and user command groups. Each interface wraps exactly one
// AWS SDK method, enabling mock injection in tests.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/transfer"
)

// CreateServerAPI defines the subset of the Transfer Family API used to
// create a managed SFTP server.
type CreateServerAPI interface {
	CreateServer(ctx context.Context, params *transfer.CreateServerInput, optFns ...func(*transfer.Options)) (*transfer.CreateServerOutput, error)
}

// DescribeServerAPI defines the subset used to query server state.
type DescribeServerAPI interface {
	DescribeServer(ctx context.Context, params *transfer.DescribeServerInput, optFns ...func(*transfer.Options)) (*transfer.DescribeServerOutput, error)
}

// StartServerAPI defines the subset used to start a stopped server.
type StartServerAPI interface {
	StartServer(ctx context.Context, params *transfer.StartServerInput, optFns ...func(*transfer.Options)) (*transfer.StartServerOutput, error)
}

// StopServerAPI defines the subset used to stop a running server.
type StopServerAPI interface {
	StopServer(ctx context.Context, params *transfer.StopServerInput, optFns ...func(*transfer.Options)) (*transfer.StopServerOutput, error)
}

// CreateUserAPI defines the subset used to register an SFTP user on a server.
type CreateUserAPI interface {
	CreateUser(ctx context.Context, params *transfer.CreateUserInput, optFns ...func(*transfer.Options)) (*transfer.CreateUserOutput, error)
}

// ServerAPI groups the server lifecycle operations used when establishing an
// SFTP session: start the server, poll until online, stop it afterwards.
type ServerAPI interface {
	DescribeServerAPI
	StartServerAPI
	StopServerAPI
}

// Compile-time checks: *transfer.Client satisfies all narrow interfaces.
var (
	_ CreateServerAPI   = (*transfer.Client)(nil)
	_ DescribeServerAPI = (*transfer.Client)(nil)
	_ StartServerAPI    = (*transfer.Client)(nil)
	_ StopServerAPI     = (*transfer.Client)(nil)
	_ CreateUserAPI     = (*transfer.Client)(nil)
	_ ServerAPI         = (*transfer.Client)(nil)
)
