// Package tags provides tag constants and a fluent tag builder for
// lakegate-managed AWS resources.
//
// Every resource lakegate creates carries a standard set of tags so that
// operators can attribute servers and roles to the CLI and to the caller
// that created them. This package centralises the tag schema so that
// provisioning commands share a single source of truth.
package tags

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	transfertypes "github.com/aws/aws-sdk-go-v2/service/transfer/types"
)

// ---------------------------------------------------------------------------
// Tag key constants
// ---------------------------------------------------------------------------

const (
	// TagLakegate marks a resource as managed by lakegate. Value is always "true".
	TagLakegate = "lakegate"

	// TagComponent identifies the resource type within a lakegate deployment.
	TagComponent = "lakegate:component"

	// TagOwner is the friendly owner name derived from STS at runtime.
	TagOwner = "lakegate:owner"

	// TagOwnerARN is the full IAM ARN of the owner.
	TagOwnerARN = "lakegate:owner-arn"

	// TagName is the standard AWS Name tag. Format: lakegate/<owner>.
	TagName = "Name"
)

// ---------------------------------------------------------------------------
// Component value constants
// ---------------------------------------------------------------------------

const (
	ComponentServer = "sftp-server"
	ComponentRole   = "access-role"
	ComponentBucket = "bucket"
)

// ---------------------------------------------------------------------------
// TagBuilder — fluent builder for Transfer Family tag sets
// ---------------------------------------------------------------------------

// TagBuilder constructs a set of tags for a lakegate resource.
// Base tags (lakegate, owner, owner-arn, Name) are always included.
// The component tag is added via WithComponent.
type TagBuilder struct {
	owner    string
	ownerARN string

	component string
}

// NewTagBuilder creates a TagBuilder with the required base fields.
func NewTagBuilder(owner, ownerARN string) *TagBuilder {
	return &TagBuilder{
		owner:    owner,
		ownerARN: ownerARN,
	}
}

// WithComponent sets the lakegate:component tag value.
func (b *TagBuilder) WithComponent(component string) *TagBuilder {
	b.component = component
	return b
}

// Build produces the full set of Transfer Family tags.
func (b *TagBuilder) Build() []transfertypes.Tag {
	tags := []transfertypes.Tag{
		{Key: aws.String(TagLakegate), Value: aws.String("true")},
		{Key: aws.String(TagOwner), Value: aws.String(b.owner)},
		{Key: aws.String(TagOwnerARN), Value: aws.String(b.ownerARN)},
		{Key: aws.String(TagName), Value: aws.String(fmt.Sprintf("lakegate/%s", b.owner))},
	}

	if b.component != "" {
		tags = append(tags, transfertypes.Tag{
			Key: aws.String(TagComponent), Value: aws.String(b.component),
		})
	}

	return tags
}

// Map converts a tag list into a key/value map for lookup in tests and
// describe-style output.
func Map(list []transfertypes.Tag) map[string]string {
	m := make(map[string]string, len(list))
	for _, t := range list {
		m[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return m
}
