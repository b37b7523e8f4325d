package pkg

import (
	"testing"

	"eks-cloudforge/pkg/chart"

	"github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppAlertRules(t *testing.T) {
	rules := AppAlertRules("cloudforge", "cloudforge")

	names := map[string]AlertRule{}
	for _, r := range rules {
		names[r.Alert] = r
		assert.Contains(t, r.Expr, `namespace="cloudforge"`, r.Alert)
		assert.NotEmpty(t, r.For, r.Alert)
	}
	for _, want := range []string{"CloudForgeAppDown", "CloudForgeHighCPU", "CloudForgeHighMemory"} {
		assert.Contains(t, names, want)
	}
	assert.Equal(t, "critical", names["CloudForgeAppDown"].Severity)
	assert.Equal(t, `app_cpu_usage_ratio{namespace="cloudforge",service="cloudforge"} > 0.8`, names["CloudForgeHighCPU"].Expr)
	for _, r := range rules {
		assert.NotContains(t, r.Expr, "container_cpu_usage_seconds_total", "%s reads a utilisation value as a counter", r.Alert)
	}
}

func TestDeployPrometheus(t *testing.T) {
	m := newMocks()

	runWithMocks(t, m, func(ctx *pulumi.Context) error {
		provider, err := kubernetes.NewProvider(ctx, "k8s", &kubernetes.ProviderArgs{})
		if err != nil {
			return err
		}
		app, err := DeployApp(ctx, provider, AppArgs{
			Release:   "cloudforge",
			Namespace: "cloudforge",
			Values:    chart.Default(),
			Image:     pulumi.String("registry/app:v1"),
			Region:    "us-west-2",
		})
		if err != nil {
			return err
		}
		_, err = DeployPrometheus(ctx, provider, app)
		return err
	})

	release, ok := m.named(prometheusReleaseName)
	require.True(t, ok)
	assert.Equal(t, prometheusStackChart, release.Inputs["chart"].StringValue())
	assert.Equal(t, monitoringNamespace, release.Inputs["namespace"].StringValue())

	monitor, ok := m.named("cloudforge-monitor")
	require.True(t, ok)
	endpoints := object(monitor.Inputs, "spec")["endpoints"].ArrayValue()
	require.Len(t, endpoints, 1)
	assert.Equal(t, metricsPath, endpoints[0].ObjectValue()["path"].StringValue())
	assert.Equal(t, httpPortName, endpoints[0].ObjectValue()["port"].StringValue())

	rules, ok := m.named("cloudforge-rules")
	require.True(t, ok)
	groups := object(rules.Inputs, "spec")["groups"].ArrayValue()
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].ObjectValue()["rules"].ArrayValue(), len(AppAlertRules("cloudforge", "cloudforge")))
}
