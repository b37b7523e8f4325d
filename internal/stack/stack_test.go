package stack

import (
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputsString(t *testing.T) {
	o := Outputs{
		OutputClusterName: "cloudforge-dev-eks",
		"empty":           "",
		"count":           3.0,
	}

	name, err := o.String(OutputClusterName)
	require.NoError(t, err)
	assert.Equal(t, "cloudforge-dev-eks", name)

	_, err = o.String(OutputRepositoryURL)
	assert.ErrorContains(t, err, "is not set")
	_, err = o.String("empty")
	assert.ErrorContains(t, err, "not a string")
	_, err = o.String("count")
	assert.ErrorContains(t, err, "not a string")

	assert.Equal(t, []string{"clusterName", "count", "empty"}, o.Keys())
}

func TestConfigMap(t *testing.T) {
	m := configMap(map[string]string{"aws:region": "us-west-2", "eks-cloudforge:imageTag": "v1"})
	assert.Equal(t, auto.ConfigMap{
		"aws:region":              auto.ConfigValue{Value: "us-west-2"},
		"eks-cloudforge:imageTag": auto.ConfigValue{Value: "v1"},
	}, m)
}

func TestOutputsMaskSecrets(t *testing.T) {
	got := outputs(auto.OutputMap{
		OutputVpcID: auto.OutputValue{Value: "vpc-1"},
		"kubeconfig": auto.OutputValue{Value: map[string]any{"apiVersion": "v1"}, Secret: true},
	})
	assert.Equal(t, "vpc-1", got[OutputVpcID])
	assert.Equal(t, "[secret]", got["kubeconfig"])
}
