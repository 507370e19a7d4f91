// utils/r2.go
package utils

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gosimple/slug"
)

// R2Options are the credentials of a Cloudflare R2 bucket. Endpoint
// overrides the account endpoint, e.g. for a local S3-compatible store.
type R2Options struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Endpoint        string
}

func (o R2Options) endpoint() string {
	if o.Endpoint != "" {
		return o.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", o.AccountID)
}

// NewR2Client builds an S3 client pointed at R2.
func NewR2Client(ctx context.Context, opts R2Options) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, opts.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	endpoint := opts.endpoint()
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	}), nil
}

// ArchiveKey is the object key of a settled tournament,
// e.g. "test-warrior/tournaments/7.json".
func ArchiveKey(displayName string, tournamentID uint64) string {
	prefix := slug.Make(displayName)
	if prefix == "" {
		prefix = "factory"
	}
	return fmt.Sprintf("%s/tournaments/%d.json", prefix, tournamentID)
}
