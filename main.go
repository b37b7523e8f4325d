package main

import (
	"eks-cloudforge/pkg"
	"eks-cloudforge/pkg/chart"

	"github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

func main() {
	pulumi.Run(program)
}

// program provisions the stack and exports its outputs.
func program(ctx *pulumi.Context) error {
	outputs, err := provision(ctx)
	if err != nil {
		return err
	}
	for name, value := range outputs {
		ctx.Export(name, value)
	}
	return nil
}

// provision registers every resource of the stack and returns the stack
// outputs by name.
func provision(ctx *pulumi.Context) (pulumi.Map, error) {
	cfg, err := pkg.LoadStackConfig(ctx)
	if err != nil {
		return nil, err
	}

	naming, err := pkg.NewNaming(ctx, cfg.ProjectName, cfg.Environment)
	if err != nil {
		return nil, err
	}

	// Create or look up the VPC, subnets and cluster security group
	networkResult, err := pkg.CreateNetworkResources(ctx, cfg, naming)
	if err != nil {
		return nil, err
	}

	roles, err := pkg.CreateIAMRoles(ctx, naming)
	if err != nil {
		return nil, err
	}

	eksResult, err := pkg.CreateEKSCluster(ctx, cfg, naming, networkResult, roles)
	if err != nil {
		return nil, err
	}

	ecrResult, err := pkg.CreateECRRepository(ctx, cfg, naming)
	if err != nil {
		return nil, err
	}

	storageResult, err := pkg.CreateArtifactBucket(ctx, cfg, naming)
	if err != nil {
		return nil, err
	}

	monitoringResult, err := pkg.CreateMonitoring(ctx, cfg, naming, eksResult.ClusterName)
	if err != nil {
		return nil, err
	}

	outputs := pulumi.Map{
		"vpcId":             networkResult.VpcID,
		"ecrRepositoryUrl":  ecrResult.RepositoryURL,
		"clusterName":       eksResult.ClusterName,
		"clusterEndpoint":   eksResult.ClusterEndpoint,
		"kubeconfig":        pulumi.ToSecret(eksResult.Kubeconfig),
		"kubeconfigCommand": eksResult.KubeconfigCommand,
		"artifactBucket":    storageResult.BucketName,
		"logGroupName":      monitoringResult.LogGroupName,
		"dashboardArn":      monitoringResult.DashboardArn,
	}

	if !cfg.DeployApp {
		ctx.Log.Info("deployApp is false, skipping application release", nil)
		return outputs, nil
	}
	app, err := deployApplication(ctx, cfg, naming, eksResult, ecrResult)
	if err != nil {
		return nil, err
	}
	outputs["namespace"] = pulumi.String(app.Namespace)
	outputs["serviceName"] = pulumi.String(app.ServiceName)
	return outputs, nil
}

// deployApplication installs the app release and, when enabled, the
// Prometheus stack that scrapes it.
func deployApplication(ctx *pulumi.Context, cfg *pkg.StackConfig, naming *pkg.Naming, eksResult *pkg.EKSResult, ecrResult *pkg.ECRResult) (*pkg.AppResult, error) {
	// Deploy the application onto the new cluster
	values, err := chart.Load(cfg.AppValuesFile)
	if err != nil {
		return nil, err
	}
	values.Image.Tag = cfg.ImageTag
	if err := values.Validate(cfg.ProjectName); err != nil {
		return nil, err
	}

	image := pulumi.Sprintf("%s:%s", ecrResult.RepositoryURL, values.Image.Tag)
	if values.Image.Repository != "" {
		image = pulumi.String(values.ImageRef()).ToStringOutput()
	}

	provider, err := kubernetes.NewProvider(ctx, naming.Logical("k8s"), &kubernetes.ProviderArgs{
		Kubeconfig: eksResult.KubeconfigJSON,
	}, pulumi.DependsOn([]pulumi.Resource{eksResult.Cluster}))
	if err != nil {
		return nil, err
	}

	appResult, err := pkg.DeployApp(ctx, provider, pkg.AppArgs{
		Release:     cfg.ProjectName,
		Namespace:   cfg.AppNamespace,
		Values:      values,
		Image:       image,
		Region:      cfg.Region,
		ClusterName: eksResult.ClusterName,
	})
	if err != nil {
		return nil, err
	}

	if cfg.EnableMonitoring {
		if _, err := pkg.DeployPrometheus(ctx, provider, appResult); err != nil {
			return nil, err
		}
	} else {
		ctx.Log.Info("monitoring disabled, skipping Prometheus stack", nil)
	}

	return appResult, nil
}
