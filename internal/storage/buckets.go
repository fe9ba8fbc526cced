// Package storage implements S3 bucket management for the data lake: bucket
// creation with region handling and public-access lockdown, listing, and
// deletion. All AWS dependencies are injected via narrow interfaces.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	lakeaws "github.com/nicholasgasior/lakegate/internal/aws"
)

// CreateBucket creates an S3 bucket in the given region and blocks all public
// access on it. Creation is idempotent: a bucket this account already owns is
// treated as success (public-access block is still applied).
//
// us-east-1 is the AWS special case: CreateBucket must NOT include a
// CreateBucketConfiguration (specifying LocationConstraint for us-east-1
// returns an InvalidLocationConstraint error).
func CreateBucket(ctx context.Context, client lakeaws.S3BucketAPI, bucket, region string) error {
	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	if region != "us-east-1" {
		createInput.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}

	if _, err := client.CreateBucket(ctx, createInput); err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if !errors.As(err, &owned) {
			return fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		// Already ours; fall through and make sure the access block is set.
	}

	// Transfer users reach objects through the server's access role, never
	// through public URLs, so every lake bucket gets the full block.
	t := true
	if _, err := client.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(bucket),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       &t,
			BlockPublicPolicy:     &t,
			IgnorePublicAcls:      &t,
			RestrictPublicBuckets: &t,
		},
	}); err != nil {
		return fmt.Errorf("put public access block on %q: %w", bucket, err)
	}

	return nil
}

// ListBuckets returns the names of all buckets owned by the caller, in the
// order the API reports them.
func ListBuckets(ctx context.Context, client lakeaws.ListBucketsAPI) ([]string, error) {
	out, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		if b.Name != nil {
			names = append(names, *b.Name)
		}
	}
	return names, nil
}

// DeleteBucket deletes the named bucket. The bucket must be empty; any
// provider error is propagated to the caller.
func DeleteBucket(ctx context.Context, client lakeaws.DeleteBucketAPI, bucket string) error {
	if _, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucket),
	}); err != nil {
		return fmt.Errorf("delete bucket %q: %w", bucket, err)
	}
	return nil
}
