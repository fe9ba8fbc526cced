// Package access implements IAM provisioning for the data lake: the
// least-privilege S3 access policy granted to transfer users, the trust
// policy that lets the transfer service assume the access role, and
// idempotent create-or-fetch operations for both. All AWS dependencies are
// injected via narrow interfaces.
package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	lakeaws "github.com/nicholasgasior/lakegate/internal/aws"
)

// PolicyDocument is an IAM policy document in its JSON wire shape.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is a single policy statement. Action is either a string or a
// list of strings; Principal appears only in trust policies.
type Statement struct {
	Sid       string            `json:"Sid"`
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    any               `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
}

// JSON renders the document for the IAM API.
func (d PolicyDocument) JSON() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal policy document: %w", err)
	}
	return string(data), nil
}

// policyVersion is the fixed IAM policy language version.
const policyVersion = "2012-10-17"

// homeDirActions are the object-level operations a transfer user needs in
// its logical home directory.
var homeDirActions = []string{
	"s3:PutObject",
	"s3:GetObject",
	"s3:DeleteObject",
	"s3:DeleteObjectVersion",
	"s3:GetObjectVersion",
	"s3:GetObjectACL",
	"s3:PutObjectACL",
}

// S3AccessPolicy builds the least-privilege policy for SFTP access to the
// given buckets: listing and location lookup on the buckets themselves, and
// object-level CRUD plus ACL operations on their contents. Resource ARNs
// preserve the input bucket order.
func S3AccessPolicy(buckets []string) PolicyDocument {
	bucketARNs := make([]string, len(buckets))
	objectARNs := make([]string, len(buckets))
	for i, b := range buckets {
		bucketARNs[i] = "arn:aws:s3:::" + b
		objectARNs[i] = "arn:aws:s3:::" + b + "/*"
	}

	return PolicyDocument{
		Version: policyVersion,
		Statement: []Statement{
			{
				Sid:      "AllowListingOfUserFolder",
				Effect:   "Allow",
				Action:   []string{"s3:ListBucket", "s3:GetBucketLocation"},
				Resource: bucketARNs,
			},
			{
				Sid:      "HomeDirAccess",
				Effect:   "Allow",
				Action:   homeDirActions,
				Resource: objectARNs,
			},
		},
	}
}

// Policy identifies a provisioned managed policy.
type Policy struct {
	Name string
	ARN  string
}

// EnsurePolicy creates the named managed policy with the given document. If
// a policy with that name already exists, its ARN is recovered by listing
// the account's local policies to completion and matching by name. Any
// other creation error is propagated.
func EnsurePolicy(ctx context.Context, client lakeaws.PolicyAPI, name string, doc PolicyDocument) (*Policy, error) {
	docJSON, err := doc.JSON()
	if err != nil {
		return nil, err
	}

	out, err := client.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyName:     aws.String(name),
		PolicyDocument: aws.String(docJSON),
	})
	if err == nil {
		return &Policy{
			Name: aws.ToString(out.Policy.PolicyName),
			ARN:  aws.ToString(out.Policy.Arn),
		}, nil
	}

	var exists *iamtypes.EntityAlreadyExistsException
	if !errors.As(err, &exists) {
		return nil, fmt.Errorf("create policy %q: %w", name, err)
	}

	return findPolicyByName(ctx, client, name)
}

// findPolicyByName paginates the account's customer-managed policies until
// it finds the named one. Pagination runs to completion so accounts with
// many policies resolve correctly.
func findPolicyByName(ctx context.Context, client lakeaws.ListPoliciesAPI, name string) (*Policy, error) {
	paginator := iam.NewListPoliciesPaginator(client, &iam.ListPoliciesInput{
		Scope: iamtypes.PolicyScopeTypeLocal,
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list policies while resolving %q: %w", name, err)
		}
		for _, p := range page.Policies {
			if aws.ToString(p.PolicyName) == name {
				return &Policy{
					Name: aws.ToString(p.PolicyName),
					ARN:  aws.ToString(p.Arn),
				}, nil
			}
		}
	}

	return nil, fmt.Errorf("policy %q reported as existing but not found in listing", name)
}
