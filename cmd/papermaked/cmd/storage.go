// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/papermake/papermake/pkg/config"
	"github.com/papermake/papermake/pkg/storage"
	"github.com/papermake/papermake/pkg/storage/gcs"
	"github.com/papermake/papermake/pkg/storage/localfs"
	"github.com/papermake/papermake/pkg/storage/sthree"
	"github.com/spf13/afero"
	"google.golang.org/api/option"
)

// buildStore constructs the BlobStore named by cfg.StorageBackend, the way
// the teacher's flags.go picks a storage.Store implementation from CLI
// configuration.
func buildStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.StorageBackend {
	case "", "localfs":
		return localfs.New(afero.NewBasePathFs(afero.NewOsFs(), cfg.StorageRoot)), nil
	case "s3":
		awsCfg := aws.NewConfig()
		if cfg.AWSRegion != "" {
			awsCfg = awsCfg.WithRegion(cfg.AWSRegion)
		}
		return sthree.New(sthree.Bucket(cfg.StorageRoot), sthree.AWSConfig(awsCfg)), nil
	case "gcs":
		var opts []option.ClientOption
		if cfg.GCSCredential != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCSCredential))
		}
		return gcs.New(ctx, cfg.StorageRoot, gcs.ClientOptions(opts...))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
