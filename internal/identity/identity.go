// Package identity derives the caller identity from AWS STS. The account ID
// anchors default resource names (logging-role ARN, stack names) and the
// normalized caller name is used for resource tags.
package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Caller holds the resolved AWS caller identity.
type Caller struct {
	// Name is the normalized friendly name derived from the caller ARN.
	Name string
	// AccountID is the 12-digit AWS account number.
	AccountID string
	// ARN is the full caller ARN.
	ARN string
}

// STSClient defines the subset of the STS API used for identity resolution.
// This interface enables mock injection for testing.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Resolver resolves the current AWS caller identity.
type Resolver struct {
	client STSClient
}

// NewResolver creates a Resolver with the given STS client.
func NewResolver(client STSClient) *Resolver {
	return &Resolver{client: client}
}

// Resolve calls STS GetCallerIdentity and normalizes the response.
func (r *Resolver) Resolve(ctx context.Context) (*Caller, error) {
	out, err := r.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("sts get-caller-identity: %w", err)
	}

	if out.Arn == nil {
		return nil, fmt.Errorf("sts get-caller-identity returned nil ARN")
	}
	if out.Account == nil {
		return nil, fmt.Errorf("sts get-caller-identity returned nil account")
	}

	name, err := NormalizeARN(*out.Arn)
	if err != nil {
		return nil, fmt.Errorf("normalize ARN: %w", err)
	}

	return &Caller{
		Name:      name,
		AccountID: *out.Account,
		ARN:       *out.Arn,
	}, nil
}
