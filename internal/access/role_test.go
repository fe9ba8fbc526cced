package access

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// fakeRoleClient implements lakeaws.RoleAPI for testing.
type fakeRoleClient struct {
	createErr error
	getErr    error

	// attachErrs maps policy ARN to the error AttachRolePolicy returns for it.
	attachErrs map[string]error

	createCalls int
	getCalls    int

	attachedARNs    []string
	lastCreateInput *iam.CreateRoleInput
}

func (f *fakeRoleClient) CreateRole(_ context.Context, params *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.createCalls++
	f.lastCreateInput = params
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &iam.CreateRoleOutput{
		Role: &iamtypes.Role{
			RoleName: params.RoleName,
			Arn:      aws.String("arn:aws:iam::123456789012:role/" + *params.RoleName),
		},
	}, nil
}

func (f *fakeRoleClient) GetRole(_ context.Context, params *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &iam.GetRoleOutput{
		Role: &iamtypes.Role{
			RoleName: params.RoleName,
			Arn:      aws.String("arn:aws:iam::123456789012:role/" + *params.RoleName),
		},
	}, nil
}

func (f *fakeRoleClient) AttachRolePolicy(_ context.Context, params *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	arn := aws.ToString(params.PolicyArn)
	f.attachedARNs = append(f.attachedARNs, arn)
	if err, ok := f.attachErrs[arn]; ok {
		return nil, err
	}
	return &iam.AttachRolePolicyOutput{}, nil
}

// ---------------------------------------------------------------------------
// TrustPolicy
// ---------------------------------------------------------------------------

func TestTrustPolicy_Document(t *testing.T) {
	doc := TrustPolicy("transfer")

	if len(doc.Statement) != 1 {
		t.Fatalf("got %d statements; want 1", len(doc.Statement))
	}
	st := doc.Statement[0]
	if st.Principal["Service"] != "transfer.amazonaws.com" {
		t.Errorf("Principal.Service = %q; want transfer.amazonaws.com", st.Principal["Service"])
	}
	if st.Action != "sts:AssumeRole" {
		t.Errorf("Action = %v; want sts:AssumeRole", st.Action)
	}

	// The rendered document must be valid JSON the IAM API accepts.
	rendered, err := doc.JSON()
	if err != nil {
		t.Fatalf("JSON(): %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(rendered), &parsed); err != nil {
		t.Fatalf("rendered trust policy is not valid JSON: %v", err)
	}
}

// ---------------------------------------------------------------------------
// EnsureRole
// ---------------------------------------------------------------------------

func TestEnsureRole_Creates(t *testing.T) {
	client := &fakeRoleClient{}

	r, err := EnsureRole(context.Background(), client, "lake-transfer", "transfer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name != "lake-transfer" {
		t.Errorf("Name = %q; want lake-transfer", r.Name)
	}
	if r.ARN != "arn:aws:iam::123456789012:role/lake-transfer" {
		t.Errorf("ARN = %q", r.ARN)
	}
	if client.getCalls != 0 {
		t.Errorf("GetRole called %d times; want 0 on clean create", client.getCalls)
	}

	trustDoc := aws.ToString(client.lastCreateInput.AssumeRolePolicyDocument)
	if !strings.Contains(trustDoc, "transfer.amazonaws.com") {
		t.Errorf("trust policy %q missing service principal", trustDoc)
	}
}

func TestEnsureRole_AlreadyExists_Fetches(t *testing.T) {
	client := &fakeRoleClient{createErr: alreadyExistsError()}

	r, err := EnsureRole(context.Background(), client, "lake-transfer", "transfer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ARN != "arn:aws:iam::123456789012:role/lake-transfer" {
		t.Errorf("ARN = %q", r.ARN)
	}
	if client.getCalls != 1 {
		t.Errorf("GetRole called %d times; want 1", client.getCalls)
	}
}

func TestEnsureRole_OtherError_Propagates(t *testing.T) {
	wantErr := errors.New("malformed policy document")
	client := &fakeRoleClient{createErr: wantErr}

	_, err := EnsureRole(context.Background(), client, "lake-transfer", "transfer")
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v; want wrapped %v", err, wantErr)
	}
	if client.getCalls != 0 {
		t.Errorf("GetRole called %d times; want 0 for non-conflict errors", client.getCalls)
	}
}

// ---------------------------------------------------------------------------
// AttachPolicies
// ---------------------------------------------------------------------------

func TestAttachPolicies_ContinuesPastFailure(t *testing.T) {
	attachErr := errors.New("policy not found")
	client := &fakeRoleClient{
		attachErrs: map[string]error{"arn:bad": attachErr},
	}

	var buf bytes.Buffer
	err := AttachPolicies(context.Background(), client, "lake-transfer",
		[]string{"arn:good-1", "arn:bad", "arn:good-2"}, &buf)
	if !errors.Is(err, attachErr) {
		t.Fatalf("error = %v; want wrapped %v", err, attachErr)
	}
	if len(client.attachedARNs) != 3 {
		t.Errorf("attempted %d attachments; want 3 (continue past failure)", len(client.attachedARNs))
	}
	if !strings.Contains(buf.String(), "arn:bad") {
		t.Errorf("warning output %q missing failed ARN", buf.String())
	}
}

func TestAttachPolicies_AllSucceed(t *testing.T) {
	client := &fakeRoleClient{}

	if err := AttachPolicies(context.Background(), client, "lake-transfer",
		[]string{"arn:a", "arn:b"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.attachedARNs) != 2 {
		t.Errorf("attached %d policies; want 2", len(client.attachedARNs))
	}
}
