// Package aws provides thin wrappers around AWS SDK clients used by lakegate.
// This file defines narrow interfaces for the S3 bucket management operations
// behind the bucket command group. Each interface wraps exactly one AWS SDK
// method, enabling mock injection in tests.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// CreateBucketAPI defines the subset of the S3 API used to create a bucket.
type CreateBucketAPI interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// ListBucketsAPI defines the subset of the S3 API used to list buckets.
type ListBucketsAPI interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

// DeleteBucketAPI defines the subset of the S3 API used to delete a bucket.
type DeleteBucketAPI interface {
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// PutPublicAccessBlockAPI defines the subset used to block public access on
// newly created buckets.
type PutPublicAccessBlockAPI interface {
	PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error)
}

// S3BucketAPI groups the operations needed to provision a data-lake bucket
// into a single interface for mock injection in tests.
type S3BucketAPI interface {
	CreateBucketAPI
	PutPublicAccessBlockAPI
}

// Compile-time checks: *s3.Client satisfies all narrow interfaces.
var (
	_ CreateBucketAPI         = (*s3.Client)(nil)
	_ ListBucketsAPI          = (*s3.Client)(nil)
	_ DeleteBucketAPI         = (*s3.Client)(nil)
	_ PutPublicAccessBlockAPI = (*s3.Client)(nil)
	_ S3BucketAPI             = (*s3.Client)(nil)
)
