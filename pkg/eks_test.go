package pkg

import (
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEKSCluster(t *testing.T) {
	m := newMocks()
	cfg := DefaultStackConfig()
	var name, command string

	runWithMocks(t, m, func(ctx *pulumi.Context) error {
		naming, err := NewNaming(ctx, cfg.ProjectName, cfg.Environment)
		if err != nil {
			return err
		}
		network, err := CreateNetworkResources(ctx, &cfg, naming)
		if err != nil {
			return err
		}
		roles, err := CreateIAMRoles(ctx, naming)
		if err != nil {
			return err
		}
		result, err := CreateEKSCluster(ctx, &cfg, naming, network, roles)
		if err != nil {
			return err
		}
		name = await(result.ClusterName)
		command = await(result.KubeconfigCommand)
		return nil
	})

	assert.Equal(t, "cloudforge-dev-eks-"+testSuffix, name)
	assert.Equal(t, "aws eks update-kubeconfig --region us-west-2 --name cloudforge-dev-eks-"+testSuffix, command)

	clusters := m.ofType("eks:index:Cluster")
	require.Len(t, clusters, 1)
	cluster := clusters[0]
	assert.Equal(t, "cloudforge-dev-eks", cluster.Name)
	assert.Equal(t, cfg.NodeInstanceType, cluster.Inputs["instanceType"].StringValue())
	assert.Equal(t, float64(cfg.NodeDesiredSize), cluster.Inputs["desiredCapacity"].NumberValue())
	assert.False(t, cluster.Inputs["nodeAssociatePublicIpAddress"].BoolValue(), "nodes run in the private subnets")

	attachments := m.ofType("aws:iam/rolePolicyAttachment:RolePolicyAttachment")
	require.Len(t, attachments, len(clusterPolicies)+len(nodePolicies))
	for _, a := range attachments {
		assert.True(t, cluster.dependsOn(a.Name), "cluster must wait for %s", a.Name)
	}
}
