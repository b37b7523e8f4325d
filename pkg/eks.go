package pkg

import (
	awseks "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/eks"
	"github.com/pulumi/pulumi-eks/sdk/v2/go/eks"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type EKSResult struct {
	Cluster           *eks.Cluster
	ClusterName       pulumi.StringOutput
	ClusterEndpoint   pulumi.StringOutput
	Kubeconfig        pulumi.AnyOutput
	KubeconfigJSON    pulumi.StringOutput
	KubeconfigCommand pulumi.StringOutput
}

// CreateEKSCluster creates the EKS cluster with its default node group in
// the resolved network. Nodes run in the private subnets when there are
// any; load balancers use the public ones.
func CreateEKSCluster(ctx *pulumi.Context, cfg *StackConfig, naming *Naming, network *NetworkResult, roles *IAMResult) (*EKSResult, error) {
	nodesPublic := len(network.PrivateSubnetIDs) == 0

	clusterName := naming.Name("eks")
	cluster, err := eks.NewCluster(ctx, naming.Logical("eks"), &eks.ClusterArgs{
		Name:                         clusterName,
		VpcId:                        network.VpcID,
		PublicSubnetIds:              network.PublicSubnetIDs,
		PrivateSubnetIds:             network.PrivateSubnetIDs,
		ClusterSecurityGroup:         network.ClusterSecurityGroup,
		Version:                      pulumi.String(cfg.KubernetesVersion),
		InstanceType:                 pulumi.String(cfg.NodeInstanceType),
		OperatingSystem:              eks.OperatingSystemBottlerocket,
		DesiredCapacity:              pulumi.Int(cfg.NodeDesiredSize),
		MinSize:                      pulumi.Int(cfg.NodeMinSize),
		MaxSize:                      pulumi.Int(cfg.NodeMaxSize),
		NodeAssociatePublicIpAddress: pulumi.BoolRef(nodesPublic),
		InstanceProfileName:          roles.InstanceProfile.Name,
		ServiceRole:                  roles.ClusterRole,
		CreateOidcProvider:           pulumi.Bool(true),
		Tags:                         naming.NamedTags("eks", nil),
	}, pulumi.DependsOn(roles.Attachments))
	if err != nil {
		return nil, err
	}

	// eksCluster is nil when the component reports no nested cluster.
	endpoint := cluster.EksCluster.ApplyT(func(c *awseks.Cluster) pulumi.StringOutput {
		if c == nil {
			return pulumi.String("").ToStringOutput()
		}
		return c.Endpoint
	}).(pulumi.StringOutput)

	return &EKSResult{
		Cluster:         cluster,
		ClusterName:     clusterName,
		ClusterEndpoint: endpoint,
		Kubeconfig:      cluster.Kubeconfig,
		KubeconfigJSON:  cluster.KubeconfigJson,
		KubeconfigCommand: pulumi.Sprintf("aws eks update-kubeconfig --region %s --name %s",
			cfg.Region, clusterName),
	}, nil
}
