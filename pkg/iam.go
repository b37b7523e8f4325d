package pkg

import (
	"encoding/json"
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

var (
	clusterPolicies = []string{
		"arn:aws:iam::aws:policy/AmazonEKSClusterPolicy",
	}
	nodePolicies = []string{
		"arn:aws:iam::aws:policy/AmazonEKSWorkerNodePolicy",
		"arn:aws:iam::aws:policy/AmazonEKS_CNI_Policy",
		"arn:aws:iam::aws:policy/AmazonEC2ContainerRegistryReadOnly",
		"arn:aws:iam::aws:policy/CloudWatchAgentServerPolicy",
	}
)

type IAMResult struct {
	ClusterRole     *iam.Role
	NodeRole        *iam.Role
	InstanceProfile *iam.InstanceProfile
	// Attachments must exist before the cluster and its nodes are created.
	Attachments []pulumi.Resource
}

// CreateIAMRoles creates the cluster service role, the worker node role and
// the node instance profile
func CreateIAMRoles(ctx *pulumi.Context, naming *Naming) (*IAMResult, error) {
	clusterRole, clusterAttachments, err := createServiceRole(ctx, naming, "cluster-role", "eks.amazonaws.com", clusterPolicies)
	if err != nil {
		return nil, err
	}

	nodeRole, nodeAttachments, err := createServiceRole(ctx, naming, "node-role", "ec2.amazonaws.com", nodePolicies)
	if err != nil {
		return nil, err
	}

	instanceProfile, err := iam.NewInstanceProfile(ctx, naming.Logical("node-profile"), &iam.InstanceProfileArgs{
		Name: naming.Name("node-profile"),
		Role: nodeRole.Name,
		Tags: naming.Tags(nil),
	})
	if err != nil {
		return nil, err
	}

	return &IAMResult{
		ClusterRole:     clusterRole,
		NodeRole:        nodeRole,
		InstanceProfile: instanceProfile,
		Attachments:     append(clusterAttachments, nodeAttachments...),
	}, nil
}

func createServiceRole(ctx *pulumi.Context, naming *Naming, kind, service string, policies []string) (*iam.Role, []pulumi.Resource, error) {
	assumeRolePolicy, err := createAssumeRolePolicy(service)
	if err != nil {
		return nil, nil, err
	}

	role, err := iam.NewRole(ctx, naming.Logical(kind), &iam.RoleArgs{
		Name:             naming.Name(kind),
		AssumeRolePolicy: pulumi.String(assumeRolePolicy),
		Tags:             naming.NamedTags(kind, nil),
	})
	if err != nil {
		return nil, nil, err
	}

	attachments := make([]pulumi.Resource, 0, len(policies))
	for i, policyArn := range policies {
		attachment, err := iam.NewRolePolicyAttachment(ctx, naming.Logical(fmt.Sprintf("%s-policy-%d", kind, i)), &iam.RolePolicyAttachmentArgs{
			Role:      role.Name,
			PolicyArn: pulumi.String(policyArn),
		})
		if err != nil {
			return nil, nil, err
		}
		attachments = append(attachments, attachment)
	}

	return role, attachments, nil
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    interface{}       `json:"Action"`
	Resource  interface{}       `json:"Resource,omitempty"`
}

// createAssumeRolePolicy returns the trust policy letting service assume a role.
func createAssumeRolePolicy(service string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": service},
			Action:    "sts:AssumeRole",
		}},
	}
	bytes, err := json.Marshal(doc)
	return string(bytes), err
}
