package pkg

import (
	"encoding/json"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecyclePolicy(t *testing.T) {
	policy, err := lifecyclePolicy(10)
	require.NoError(t, err)

	var doc struct {
		Rules []lifecycleRule `json:"rules"`
	}
	require.NoError(t, json.Unmarshal([]byte(policy), &doc))
	require.Len(t, doc.Rules, 1)
	assert.Equal(t, "imageCountMoreThan", doc.Rules[0].Selection.CountType)
	assert.Equal(t, 10, doc.Rules[0].Selection.CountNumber)
	assert.Equal(t, "expire", doc.Rules[0].Action.Type)
}

func TestCreateECRRepository(t *testing.T) {
	tests := []struct {
		env         string
		forceDelete bool
	}{
		{env: "dev", forceDelete: true},
		{env: "prod", forceDelete: false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			m := newMocks()
			cfg := DefaultStackConfig()
			cfg.Environment = tt.env
			var url string

			runWithMocks(t, m, func(ctx *pulumi.Context) error {
				naming, err := NewNaming(ctx, cfg.ProjectName, cfg.Environment)
				if err != nil {
					return err
				}
				result, err := CreateECRRepository(ctx, &cfg, naming)
				if err != nil {
					return err
				}
				url = await(result.RepositoryURL)
				return nil
			})

			repos := m.ofType("aws:ecr/repository:Repository")
			require.Len(t, repos, 1)
			assert.Equal(t, tt.forceDelete, repos[0].Inputs["forceDelete"].BoolValue())
			assert.Equal(t, "cloudforge-"+tt.env+"-app-"+testSuffix, repos[0].Inputs["name"].StringValue())
			assert.Contains(t, url, ".dkr.ecr.")
			assert.Len(t, m.ofType("aws:ecr/lifecyclePolicy:LifecyclePolicy"), 1)
		})
	}
}
