// Package aws provides thin wrappers around AWS SDK clients used by lakegate.
// This file defines narrow interfaces for the IAM operations behind access
// policy and role provisioning. Each interface wraps exactly one AWS SDK
// method, enabling mock injection in tests.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/iam"
)

// ---------------------------------------------------------------------------
// Managed policy provisioning
// ---------------------------------------------------------------------------

// CreatePolicyAPI defines the subset of the IAM API used to create a managed policy.
type CreatePolicyAPI interface {
	CreatePolicy(ctx context.Context, params *iam.CreatePolicyInput, optFns ...func(*iam.Options)) (*iam.CreatePolicyOutput, error)
}

// ListPoliciesAPI defines the subset of the IAM API used to list managed
// policies. Used to recover the ARN of a policy that already exists.
type ListPoliciesAPI interface {
	ListPolicies(ctx context.Context, params *iam.ListPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListPoliciesOutput, error)
}

// PolicyAPI groups the operations needed for idempotent policy provisioning.
type PolicyAPI interface {
	CreatePolicyAPI
	ListPoliciesAPI
}

// ---------------------------------------------------------------------------
// Role provisioning
// ---------------------------------------------------------------------------

// CreateRoleAPI defines the subset of the IAM API used to create a role.
type CreateRoleAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
}

// GetRoleAPI defines the subset of the IAM API used to fetch an existing role.
type GetRoleAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
}

// AttachRolePolicyAPI defines the subset of the IAM API used to attach a
// managed policy to a role.
type AttachRolePolicyAPI interface {
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
}

// RoleAPI groups the operations needed for idempotent role provisioning with
// policy attachment.
type RoleAPI interface {
	CreateRoleAPI
	GetRoleAPI
	AttachRolePolicyAPI
}

// ---------------------------------------------------------------------------
// Compile-time interface satisfaction checks
// ---------------------------------------------------------------------------

var (
	_ CreatePolicyAPI     = (*iam.Client)(nil)
	_ ListPoliciesAPI     = (*iam.Client)(nil)
	_ CreateRoleAPI       = (*iam.Client)(nil)
	_ GetRoleAPI          = (*iam.Client)(nil)
	_ AttachRolePolicyAPI = (*iam.Client)(nil)
	_ PolicyAPI           = (*iam.Client)(nil)
	_ RoleAPI             = (*iam.Client)(nil)
)
