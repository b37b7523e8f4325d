package pkg

import (
	"encoding/json"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ecr"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type ECRResult struct {
	Repository    *ecr.Repository
	RepositoryURL pulumi.StringOutput
}

// CreateECRRepository creates the image repository for the app and a
// lifecycle policy keeping only the newest images
func CreateECRRepository(ctx *pulumi.Context, cfg *StackConfig, naming *Naming) (*ECRResult, error) {
	repo, err := ecr.NewRepository(ctx, naming.Logical("app"), &ecr.RepositoryArgs{
		Name:               naming.Name("app"),
		ImageTagMutability: pulumi.String("MUTABLE"),
		ImageScanningConfiguration: &ecr.RepositoryImageScanningConfigurationArgs{
			ScanOnPush: pulumi.Bool(true),
		},
		ForceDelete: pulumi.Bool(cfg.Environment != "prod"),
		Tags:        naming.NamedTags("app", nil),
	})
	if err != nil {
		return nil, err
	}

	policy, err := lifecyclePolicy(cfg.ECRImageRetention)
	if err != nil {
		return nil, err
	}
	_, err = ecr.NewLifecyclePolicy(ctx, naming.Logical("app-lifecycle"), &ecr.LifecyclePolicyArgs{
		Repository: repo.Name,
		Policy:     pulumi.String(policy),
	})
	if err != nil {
		return nil, err
	}

	return &ECRResult{
		Repository:    repo,
		RepositoryURL: repo.RepositoryUrl,
	}, nil
}

type lifecycleRule struct {
	RulePriority int                `json:"rulePriority"`
	Description  string             `json:"description"`
	Selection    lifecycleSelection `json:"selection"`
	Action       lifecycleAction    `json:"action"`
}

type lifecycleSelection struct {
	TagStatus   string `json:"tagStatus"`
	CountType   string `json:"countType"`
	CountNumber int    `json:"countNumber"`
}

type lifecycleAction struct {
	Type string `json:"type"`
}

func lifecyclePolicy(keep int) (string, error) {
	doc := struct {
		Rules []lifecycleRule `json:"rules"`
	}{
		Rules: []lifecycleRule{{
			RulePriority: 1,
			Description:  "Expire all but the newest images",
			Selection: lifecycleSelection{
				TagStatus:   "any",
				CountType:   "imageCountMoreThan",
				CountNumber: keep,
			},
			Action: lifecycleAction{Type: "expire"},
		}},
	}
	bytes, err := json.Marshal(doc)
	return string(bytes), err
}
