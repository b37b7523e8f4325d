package pkg

import (
	"testing"

	"eks-cloudforge/pkg/chart"

	"github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secretType     = "kubernetes:core/v1:Secret"
	deploymentType = "kubernetes:apps/v1:Deployment"
	hpaType        = "kubernetes:autoscaling/v2:HorizontalPodAutoscaler"
	ingressType    = "kubernetes:networking.k8s.io/v1:Ingress"
)

func deployTestApp(t *testing.T, values chart.Values) (*mocks, *AppResult) {
	t.Helper()
	m := newMocks()
	var result *AppResult
	runWithMocks(t, m, func(ctx *pulumi.Context) error {
		provider, err := kubernetes.NewProvider(ctx, "k8s", &kubernetes.ProviderArgs{})
		if err != nil {
			return err
		}
		result, err = DeployApp(ctx, provider, AppArgs{
			Release:     "cloudforge",
			Namespace:   "cloudforge",
			Values:      values,
			Image:       pulumi.String("registry/app:v1"),
			Region:      "us-west-2",
			ClusterName: pulumi.String("cloudforge-dev-eks-0a1b2c3d"),
		})
		return err
	})
	return m, result
}

func TestDeployApp_Defaults(t *testing.T) {
	m, result := deployTestApp(t, chart.Default())

	assert.Equal(t, "cloudforge", result.ServiceName)
	assert.Nil(t, result.Secret)
	assert.Empty(t, m.ofType(secretType))
	assert.Len(t, m.ofType(hpaType), 1)
	assert.Empty(t, m.ofType(ingressType))

	deployments := m.ofType(deploymentType)
	require.Len(t, deployments, 1)
	spec := object(deployments[0].Inputs, "spec")
	assert.False(t, spec.HasValue("replicas"), "autoscaler owns the replica count")

	containers := object(spec, "template", "spec")["containers"].ArrayValue()
	require.Len(t, containers, 1)
	container := containers[0].ObjectValue()
	assert.Equal(t, "registry/app:v1", container["image"].StringValue())

	env := map[string]bool{}
	for _, e := range container["env"].ArrayValue() {
		env[e.ObjectValue()["name"].StringValue()] = true
	}
	for _, name := range []string{"PORT", "AWS_REGION", "POD_NAME", "POD_NAMESPACE", "EKS_CLUSTER_NAME"} {
		assert.True(t, env[name], name)
	}

	liveness := object(container, "livenessProbe", "httpGet")
	assert.Equal(t, "/health", liveness["path"].StringValue())
	assert.Equal(t, 5000.0, liveness["port"].NumberValue())
}

func TestDeployApp_Secrets(t *testing.T) {
	tests := []struct {
		name       string
		secrets    chart.Secrets
		wantSecret bool
		wantData   map[string]string
	}{
		{
			name:       "disabled",
			secrets:    chart.Secrets{Enabled: false, Data: map[string]string{"API_KEY": "x"}},
			wantSecret: false,
		},
		{
			name:       "enabled without data",
			secrets:    chart.Secrets{Enabled: true},
			wantSecret: true,
			wantData:   map[string]string{},
		},
		{
			name:       "enabled with data",
			secrets:    chart.Secrets{Enabled: true, Data: map[string]string{"API_KEY": "x", "DB_PASSWORD": "y"}},
			wantSecret: true,
			wantData:   map[string]string{"API_KEY": "x", "DB_PASSWORD": "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := chart.Default()
			values.Secrets = tt.secrets
			m, result := deployTestApp(t, values)

			secrets := m.ofType(secretType)
			if !tt.wantSecret {
				assert.Empty(t, secrets)
				assert.Nil(t, result.Secret)
				return
			}
			require.Len(t, secrets, 1)
			assert.NotNil(t, result.Secret)
			assert.Equal(t, tt.wantData, stringMap(secrets[0].Inputs, "stringData"))
		})
	}
}

func TestDeployApp_FixedReplicasAndIngress(t *testing.T) {
	values := chart.Default()
	values.Autoscaling.Enabled = false
	values.ReplicaCount = 3
	values.Ingress.Enabled = true
	values.Ingress.Host = "app.example.com"
	values.Ingress.TLSSecretName = "app-tls"

	m, _ := deployTestApp(t, values)

	assert.Empty(t, m.ofType(hpaType))

	deployments := m.ofType(deploymentType)
	require.Len(t, deployments, 1)
	assert.Equal(t, 3.0, object(deployments[0].Inputs, "spec")["replicas"].NumberValue())

	ingresses := m.ofType(ingressType)
	require.Len(t, ingresses, 1)
	spec := object(ingresses[0].Inputs, "spec")
	assert.Equal(t, "alb", spec["ingressClassName"].StringValue())
	rules := spec["rules"].ArrayValue()
	require.Len(t, rules, 1)
	assert.Equal(t, "app.example.com", rules[0].ObjectValue()["host"].StringValue())
	assert.Len(t, spec["tls"].ArrayValue(), 1)
}
