package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cfdpgo/entity/pkg/cfdp/filestore"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore/badgerstore"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore/localfs"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore/s3store"
	"github.com/cfdpgo/entity/pkg/config"
)

// closer is implemented by filestore backends that hold an open
// resource (a database, a connection) needing a clean shutdown.
type closer interface {
	Close() error
}

// newFilestore builds the filestore.Filestore backend selected by cfg,
// returning a no-op closer for backends (local, S3) that hold nothing
// to release.
func newFilestore(ctx context.Context, cfg config.FilestoreConfig) (filestore.Filestore, closer, error) {
	fs, c, err := newBackingFilestore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return filestore.NewSizeLimited(fs, cfg.MaxObjectSize), c, nil
}

func newBackingFilestore(ctx context.Context, cfg config.FilestoreConfig) (filestore.Filestore, closer, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return localfs.New(cfg.LocalPath), noopCloser{}, nil

	case config.BackendBadger:
		store, err := badgerstore.Open(cfg.BadgerDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger filestore at %s: %w", cfg.BadgerDir, err)
		}
		return store, store, nil

	case config.BackendS3:
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create S3 client: %w", err)
		}
		return s3store.New(client, cfg.S3Bucket, cfg.S3Prefix), noopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("unknown filestore backend %q", cfg.Backend)
	}
}

func newS3Client(ctx context.Context, cfg config.FilestoreConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3ForcePathStyle
	}), nil
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }
