package pkg

import (
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type StorageResult struct {
	Bucket     *s3.BucketV2
	BucketName pulumi.StringOutput
}

// CreateArtifactBucket creates a private, versioned and encrypted bucket for
// build artifacts. Bucket names are global, hence the suffixed name.
func CreateArtifactBucket(ctx *pulumi.Context, cfg *StackConfig, naming *Naming) (*StorageResult, error) {
	bucket, err := s3.NewBucketV2(ctx, naming.Logical("artifacts"), &s3.BucketV2Args{
		Bucket:       naming.Name("artifacts"),
		ForceDestroy: pulumi.Bool(cfg.Environment != "prod"),
		Tags:         naming.NamedTags("artifacts", nil),
	})
	if err != nil {
		return nil, err
	}

	_, err = s3.NewBucketVersioningV2(ctx, naming.Logical("artifacts-versioning"), &s3.BucketVersioningV2Args{
		Bucket: bucket.ID(),
		VersioningConfiguration: &s3.BucketVersioningV2VersioningConfigurationArgs{
			Status: pulumi.String("Enabled"),
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = s3.NewBucketServerSideEncryptionConfigurationV2(ctx, naming.Logical("artifacts-sse"), &s3.BucketServerSideEncryptionConfigurationV2Args{
		Bucket: bucket.ID(),
		Rules: s3.BucketServerSideEncryptionConfigurationV2RuleArray{
			&s3.BucketServerSideEncryptionConfigurationV2RuleArgs{
				ApplyServerSideEncryptionByDefault: &s3.BucketServerSideEncryptionConfigurationV2RuleApplyServerSideEncryptionByDefaultArgs{
					SseAlgorithm: pulumi.String("AES256"),
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = s3.NewBucketPublicAccessBlock(ctx, naming.Logical("artifacts-public-access"), &s3.BucketPublicAccessBlockArgs{
		Bucket:                bucket.ID(),
		BlockPublicAcls:       pulumi.Bool(true),
		BlockPublicPolicy:     pulumi.Bool(true),
		IgnorePublicAcls:      pulumi.Bool(true),
		RestrictPublicBuckets: pulumi.Bool(true),
	})
	if err != nil {
		return nil, err
	}

	return &StorageResult{
		Bucket:     bucket,
		BucketName: bucket.Bucket,
	}, nil
}
