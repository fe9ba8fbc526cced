// Package account builds AWS clients for a secondary account from explicit
// static credentials. The primary clients come from the ambient credential
// chain (cmd layer); these constructors cover the cross-account case where
// the transfer server lives in another account.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/transfer"
)

// Config builds an AWS config bound to the given static credentials and
// region. The credentials are passed through verbatim; no validation beyond
// non-emptiness is performed.
func Config(ctx context.Context, accessKey, secretKey, region string) (aws.Config, error) {
	if accessKey == "" || secretKey == "" {
		return aws.Config{}, errors.New("static credentials: access key and secret key are required")
	}
	if region == "" {
		return aws.Config{}, errors.New("static credentials: region is required")
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx,
		awscfg.WithRegion(region),
		awscfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load static-credential config: %w", err)
	}
	return cfg, nil
}

// TransferClient returns a Transfer Family client for the secondary account.
func TransferClient(ctx context.Context, accessKey, secretKey, region string) (*transfer.Client, error) {
	cfg, err := Config(ctx, accessKey, secretKey, region)
	if err != nil {
		return nil, err
	}
	return transfer.NewFromConfig(cfg), nil
}

// S3Client returns an S3 client for the secondary account.
func S3Client(ctx context.Context, accessKey, secretKey, region string) (*s3.Client, error) {
	cfg, err := Config(ctx, accessKey, secretKey, region)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}
