package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transfer"
	transfertypes "github.com/aws/aws-sdk-go-v2/service/transfer/types"
	"github.com/spf13/cobra"
)

// fakeCreateUser records the CreateUser request.
type fakeCreateUser struct {
	calls int
	input *transfer.CreateUserInput
	err   error
}

func (f *fakeCreateUser) CreateUser(_ context.Context, in *transfer.CreateUserInput, _ ...func(*transfer.Options)) (*transfer.CreateUserOutput, error) {
	f.calls++
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &transfer.CreateUserOutput{
		ServerId: in.ServerId,
		UserName: in.UserName,
	}, nil
}

const testPublicKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIHfExample alice@example.com"

func newUserAddTestCommand(fake *fakeCreateUser, stored string) *cobra.Command {
	return newUserAddCommandWithDeps(&userAddDeps{
		createUser: fake,
		stored:     stored,
		readFile: func(path string) ([]byte, error) {
			return []byte(testPublicKey + "\n"), nil
		},
	})
}

func TestUserAdd(t *testing.T) {
	fake := &fakeCreateUser{}
	cmd := newUserAddTestCommand(fake, "s-0123456789abcdef0")
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetArgs([]string{
		"alice",
		"--role", "arn:aws:iam::123456789012:role/lake-transfer-access",
		"--public-key", "/tmp/alice.pub",
		"--bucket", "lake-raw",
	})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("calls = %d, want 1", fake.calls)
	}

	in := fake.input
	if got := aws.ToString(in.ServerId); got != "s-0123456789abcdef0" {
		t.Errorf("ServerId = %q", got)
	}
	if got := aws.ToString(in.UserName); got != "alice" {
		t.Errorf("UserName = %q", got)
	}
	if got := aws.ToString(in.SshPublicKeyBody); got != testPublicKey {
		t.Errorf("SshPublicKeyBody = %q (trailing whitespace should be trimmed)", got)
	}
	if in.HomeDirectoryType != transfertypes.HomeDirectoryTypeLogical {
		t.Errorf("HomeDirectoryType = %v", in.HomeDirectoryType)
	}
	if len(in.HomeDirectoryMappings) != 1 {
		t.Fatalf("mappings = %d, want 1", len(in.HomeDirectoryMappings))
	}
	m := in.HomeDirectoryMappings[0]
	if aws.ToString(m.Entry) != "/" || aws.ToString(m.Target) != "/lake-raw/alice" {
		t.Errorf("mapping = %q -> %q", aws.ToString(m.Entry), aws.ToString(m.Target))
	}
}

func TestUserAdd_ExtraMappings(t *testing.T) {
	fake := &fakeCreateUser{}
	cmd := newUserAddTestCommand(fake, "s-0123456789abcdef0")
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{
		"alice",
		"--role", "arn:aws:iam::123456789012:role/lake-transfer-access",
		"--public-key", "/tmp/alice.pub",
		"--bucket", "lake-raw",
		"--map", "/shared=/lake-curated/shared",
	})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	// Mappings are sorted by entry: "/" then "/shared".
	if len(fake.input.HomeDirectoryMappings) != 2 {
		t.Fatalf("mappings = %d, want 2", len(fake.input.HomeDirectoryMappings))
	}
	second := fake.input.HomeDirectoryMappings[1]
	if aws.ToString(second.Entry) != "/shared" || aws.ToString(second.Target) != "/lake-curated/shared" {
		t.Errorf("mapping = %q -> %q", aws.ToString(second.Entry), aws.ToString(second.Target))
	}
}

func TestUserAdd_InvalidMapSyntax(t *testing.T) {
	fake := &fakeCreateUser{}
	cmd := newUserAddTestCommand(fake, "s-0123456789abcdef0")
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{
		"alice",
		"--role", "arn:aws:iam::123456789012:role/lake-transfer-access",
		"--public-key", "/tmp/alice.pub",
		"--bucket", "lake-raw",
		"--map", "no-separator",
	})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "expected entry=target") {
		t.Fatalf("err = %v, want map syntax error", err)
	}
	if fake.calls != 0 {
		t.Errorf("calls = %d, want 0", fake.calls)
	}
}

func TestUserAdd_ExplicitServerIDOverridesStored(t *testing.T) {
	fake := &fakeCreateUser{}
	cmd := newUserAddTestCommand(fake, "s-11111111111111111")
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{
		"alice",
		"--server-id", "s-22222222222222222",
		"--role", "arn:aws:iam::123456789012:role/lake-transfer-access",
		"--public-key", "/tmp/alice.pub",
		"--bucket", "lake-raw",
	})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := aws.ToString(fake.input.ServerId); got != "s-22222222222222222" {
		t.Errorf("ServerId = %q", got)
	}
}

func TestUserAdd_NoServerIDErrors(t *testing.T) {
	fake := &fakeCreateUser{}
	cmd := newUserAddTestCommand(fake, "")
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{
		"alice",
		"--role", "arn:aws:iam::123456789012:role/lake-transfer-access",
		"--public-key", "/tmp/alice.pub",
		"--bucket", "lake-raw",
	})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "no server ID") {
		t.Fatalf("err = %v, want no-server-ID error", err)
	}
}
