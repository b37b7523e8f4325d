package pkg

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const (
	elbRoleTag         = "kubernetes.io/role/elb"
	internalELBRoleTag = "kubernetes.io/role/internal-elb"
)

type NetworkResult struct {
	VpcID                pulumi.StringOutput
	VpcCidr              pulumi.StringOutput
	PublicSubnetIDs      pulumi.StringArray
	PrivateSubnetIDs     pulumi.StringArray
	ClusterSecurityGroup *ec2.SecurityGroup
	// Created is false when the stack runs inside an existing VPC.
	Created bool
}

// CreateNetworkResources resolves the VPC the cluster runs in. With
// UseExistingVpc the VPC is looked up and nothing is created; otherwise a
// VPC with public and private subnets is created. Either way VpcID is the
// single value downstream resources use.
func CreateNetworkResources(ctx *pulumi.Context, cfg *StackConfig, naming *Naming) (*NetworkResult, error) {
	var (
		result *NetworkResult
		err    error
	)
	if cfg.UseExistingVpc {
		result, err = lookupExistingNetwork(ctx, cfg)
	} else {
		result, err = createNetwork(ctx, cfg, naming)
	}
	if err != nil {
		return nil, err
	}

	sg, err := createClusterSecurityGroup(ctx, naming, result)
	if err != nil {
		return nil, err
	}
	result.ClusterSecurityGroup = sg

	return result, nil
}

func lookupExistingNetwork(ctx *pulumi.Context, cfg *StackConfig) (*NetworkResult, error) {
	vpc, err := ec2.LookupVpc(ctx, &ec2.LookupVpcArgs{
		Id: pulumi.StringRef(cfg.ExistingVpcID),
	})
	if err != nil {
		return nil, fmt.Errorf("looking up vpc %s: %w", cfg.ExistingVpcID, err)
	}

	publicIDs := cfg.ExistingPublicSubnetIDs
	if len(publicIDs) == 0 {
		if publicIDs, err = discoverSubnets(ctx, vpc.Id, elbRoleTag); err != nil {
			return nil, err
		}
	}
	privateIDs := cfg.ExistingPrivateSubnetIDs
	if len(privateIDs) == 0 {
		if privateIDs, err = discoverSubnets(ctx, vpc.Id, internalELBRoleTag); err != nil {
			return nil, err
		}
	}
	if len(publicIDs)+len(privateIDs) == 0 {
		return nil, fmt.Errorf("vpc %s has no subnets tagged %s or %s", vpc.Id, elbRoleTag, internalELBRoleTag)
	}

	ctx.Log.Info(fmt.Sprintf("using existing vpc %s (%d public, %d private subnets)",
		vpc.Id, len(publicIDs), len(privateIDs)), nil)

	return &NetworkResult{
		VpcID:            pulumi.String(vpc.Id).ToStringOutput(),
		VpcCidr:          pulumi.String(vpc.CidrBlock).ToStringOutput(),
		PublicSubnetIDs:  pulumi.ToStringArray(publicIDs),
		PrivateSubnetIDs: pulumi.ToStringArray(privateIDs),
		Created:          false,
	}, nil
}

func discoverSubnets(ctx *pulumi.Context, vpcID, roleTag string) ([]string, error) {
	subnets, err := ec2.GetSubnets(ctx, &ec2.GetSubnetsArgs{
		Filters: []ec2.GetSubnetsFilter{
			{Name: "vpc-id", Values: []string{vpcID}},
		},
		Tags: map[string]string{roleTag: "1"},
	})
	if err != nil {
		return nil, fmt.Errorf("discovering %s subnets in %s: %w", roleTag, vpcID, err)
	}
	return subnets.Ids, nil
}

func createNetwork(ctx *pulumi.Context, cfg *StackConfig, naming *Naming) (*NetworkResult, error) {
	zones, err := aws.GetAvailabilityZones(ctx, &aws.GetAvailabilityZonesArgs{
		State: pulumi.StringRef("available"),
	})
	if err != nil {
		return nil, err
	}
	if len(zones.Names) == 0 {
		return nil, fmt.Errorf("no availability zones available in %s", cfg.Region)
	}

	vpc, err := ec2.NewVpc(ctx, naming.Logical("vpc"), &ec2.VpcArgs{
		CidrBlock:          pulumi.String(cfg.VpcCidr),
		EnableDnsHostnames: pulumi.Bool(true),
		EnableDnsSupport:   pulumi.Bool(true),
		Tags:               naming.NamedTags("vpc", nil),
	})
	if err != nil {
		return nil, err
	}

	igw, err := ec2.NewInternetGateway(ctx, naming.Logical("igw"), &ec2.InternetGatewayArgs{
		VpcId: vpc.ID(),
		Tags:  naming.NamedTags("igw", nil),
	})
	if err != nil {
		return nil, err
	}

	var publicSubnets, privateSubnets []*ec2.Subnet
	for i, cidr := range cfg.PublicSubnetCidrs {
		kind := fmt.Sprintf("public-%d", i+1)
		subnet, err := ec2.NewSubnet(ctx, naming.Logical(kind), &ec2.SubnetArgs{
			VpcId:               vpc.ID(),
			CidrBlock:           pulumi.String(cidr),
			AvailabilityZone:    pulumi.String(zones.Names[i%len(zones.Names)]),
			MapPublicIpOnLaunch: pulumi.Bool(true),
			Tags:                naming.NamedTags(kind, map[string]string{elbRoleTag: "1"}),
		})
		if err != nil {
			return nil, err
		}
		publicSubnets = append(publicSubnets, subnet)
	}
	for i, cidr := range cfg.PrivateSubnetCidrs {
		kind := fmt.Sprintf("private-%d", i+1)
		subnet, err := ec2.NewSubnet(ctx, naming.Logical(kind), &ec2.SubnetArgs{
			VpcId:            vpc.ID(),
			CidrBlock:        pulumi.String(cidr),
			AvailabilityZone: pulumi.String(zones.Names[i%len(zones.Names)]),
			Tags:             naming.NamedTags(kind, map[string]string{internalELBRoleTag: "1"}),
		})
		if err != nil {
			return nil, err
		}
		privateSubnets = append(privateSubnets, subnet)
	}

	// Public subnets route to the internet gateway
	publicRouteTable, err := ec2.NewRouteTable(ctx, naming.Logical("public-rt"), &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Routes: ec2.RouteTableRouteArray{
			&ec2.RouteTableRouteArgs{
				CidrBlock: pulumi.String("0.0.0.0/0"),
				GatewayId: igw.ID(),
			},
		},
		Tags: naming.NamedTags("public-rt", nil),
	})
	if err != nil {
		return nil, err
	}
	for i, subnet := range publicSubnets {
		_, err = ec2.NewRouteTableAssociation(ctx, naming.Logical(fmt.Sprintf("public-rta-%d", i+1)), &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: publicRouteTable.ID(),
		})
		if err != nil {
			return nil, err
		}
	}

	// Private subnets route through NAT; one gateway unless SingleNatGateway
	// is off, in which case each public subnet gets its own.
	natCount := len(publicSubnets)
	if cfg.SingleNatGateway {
		natCount = 1
	}
	natGateways := make([]*ec2.NatGateway, 0, natCount)
	for i := 0; i < natCount; i++ {
		kind := fmt.Sprintf("nat-%d", i+1)
		eip, err := ec2.NewEip(ctx, naming.Logical(kind+"-eip"), &ec2.EipArgs{
			Domain: pulumi.String("vpc"),
			Tags:   naming.NamedTags(kind+"-eip", nil),
		}, pulumi.DependsOn([]pulumi.Resource{igw}))
		if err != nil {
			return nil, err
		}
		nat, err := ec2.NewNatGateway(ctx, naming.Logical(kind), &ec2.NatGatewayArgs{
			AllocationId: eip.ID(),
			SubnetId:     publicSubnets[i].ID(),
			Tags:         naming.NamedTags(kind, nil),
		}, pulumi.DependsOn([]pulumi.Resource{igw}))
		if err != nil {
			return nil, err
		}
		natGateways = append(natGateways, nat)
	}

	for i, subnet := range privateSubnets {
		nat := natGateways[i%len(natGateways)]
		kind := fmt.Sprintf("private-rt-%d", i+1)
		rt, err := ec2.NewRouteTable(ctx, naming.Logical(kind), &ec2.RouteTableArgs{
			VpcId: vpc.ID(),
			Routes: ec2.RouteTableRouteArray{
				&ec2.RouteTableRouteArgs{
					CidrBlock:    pulumi.String("0.0.0.0/0"),
					NatGatewayId: nat.ID(),
				},
			},
			Tags: naming.NamedTags(kind, nil),
		})
		if err != nil {
			return nil, err
		}
		_, err = ec2.NewRouteTableAssociation(ctx, naming.Logical(fmt.Sprintf("private-rta-%d", i+1)), &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: rt.ID(),
		})
		if err != nil {
			return nil, err
		}
	}

	publicIDs := pulumi.StringArray{}
	for _, s := range publicSubnets {
		publicIDs = append(publicIDs, s.ID().ToStringOutput())
	}
	privateIDs := pulumi.StringArray{}
	for _, s := range privateSubnets {
		privateIDs = append(privateIDs, s.ID().ToStringOutput())
	}

	return &NetworkResult{
		VpcID:            vpc.ID().ToStringOutput(),
		VpcCidr:          vpc.CidrBlock,
		PublicSubnetIDs:  publicIDs,
		PrivateSubnetIDs: privateIDs,
		Created:          true,
	}, nil
}

// createClusterSecurityGroup allows HTTPS to the control plane from inside
// the VPC and all outbound traffic.
func createClusterSecurityGroup(ctx *pulumi.Context, naming *Naming, network *NetworkResult) (*ec2.SecurityGroup, error) {
	sg, err := ec2.NewSecurityGroup(ctx, naming.Logical("cluster-sg"), &ec2.SecurityGroupArgs{
		VpcId:       network.VpcID,
		Description: pulumi.String("EKS control plane security group"),
		Tags:        naming.NamedTags("cluster-sg", nil),
	})
	if err != nil {
		return nil, err
	}

	_, err = ec2.NewSecurityGroupRule(ctx, naming.Logical("cluster-https"), &ec2.SecurityGroupRuleArgs{
		Type:            pulumi.String("ingress"),
		FromPort:        pulumi.Int(443),
		ToPort:          pulumi.Int(443),
		Protocol:        pulumi.String("tcp"),
		SecurityGroupId: sg.ID(),
		CidrBlocks:      pulumi.StringArray{network.VpcCidr},
		Description:     pulumi.String("Allow HTTPS from inside the VPC"),
	})
	if err != nil {
		return nil, err
	}

	_, err = ec2.NewSecurityGroupRule(ctx, naming.Logical("cluster-egress"), &ec2.SecurityGroupRuleArgs{
		Type:            pulumi.String("egress"),
		FromPort:        pulumi.Int(0),
		ToPort:          pulumi.Int(0),
		Protocol:        pulumi.String("-1"),
		SecurityGroupId: sg.ID(),
		CidrBlocks:      pulumi.StringArray{pulumi.String("0.0.0.0/0")},
		Description:     pulumi.String("Allow all outbound traffic"),
	})
	if err != nil {
		return nil, err
	}

	return sg, nil
}
