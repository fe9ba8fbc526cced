package access

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	lakeaws "github.com/nicholasgasior/lakegate/internal/aws"
)

// Role identifies a provisioned IAM role.
type Role struct {
	Name string
	ARN  string
}

// TrustPolicy builds the trust relationship permitting the named AWS service
// (e.g. "transfer") to assume a role.
func TrustPolicy(service string) PolicyDocument {
	return PolicyDocument{
		Version: policyVersion,
		Statement: []Statement{
			{
				Sid:    "Permit",
				Effect: "Allow",
				Principal: map[string]string{
					"Service": service + ".amazonaws.com",
				},
				Action: "sts:AssumeRole",
			},
		},
	}
}

// EnsureRole creates the named role with a trust policy for the given
// service principal. If the role already exists it is fetched instead; any
// other creation error is propagated.
func EnsureRole(ctx context.Context, client lakeaws.RoleAPI, roleName, service string) (*Role, error) {
	trustJSON, err := TrustPolicy(service).JSON()
	if err != nil {
		return nil, err
	}

	out, err := client.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(roleName),
		AssumeRolePolicyDocument: aws.String(trustJSON),
	})
	if err == nil {
		return &Role{
			Name: aws.ToString(out.Role.RoleName),
			ARN:  aws.ToString(out.Role.Arn),
		}, nil
	}

	var exists *iamtypes.EntityAlreadyExistsException
	if !errors.As(err, &exists) {
		return nil, fmt.Errorf("create role %q: %w", roleName, err)
	}

	got, err := client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
	if err != nil {
		return nil, fmt.Errorf("get existing role %q: %w", roleName, err)
	}

	return &Role{
		Name: aws.ToString(got.Role.RoleName),
		ARN:  aws.ToString(got.Role.Arn),
	}, nil
}

// AttachPolicies attaches each policy ARN to the role. A failed attachment
// is reported to w and does not stop the remaining attachments; the failures
// are aggregated into the returned error so the caller can decide whether a
// partial attach is acceptable.
func AttachPolicies(ctx context.Context, client lakeaws.AttachRolePolicyAPI, roleName string, policyARNs []string, w io.Writer) error {
	var errs []error
	for _, arn := range policyARNs {
		_, err := client.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(roleName),
			PolicyArn: aws.String(arn),
		})
		if err != nil {
			if w != nil {
				fmt.Fprintf(w, "warning: could not attach policy %s to role %s: %v\n", arn, roleName, err)
			}
			errs = append(errs, fmt.Errorf("attach policy %s: %w", arn, err))
		}
	}
	return errors.Join(errs...)
}
