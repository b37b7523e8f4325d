package chart

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validValues() Values {
	v := Default()
	v.Image.Repository = "123456789012.dkr.ecr.us-west-2.amazonaws.com/cloudforge-dev-app-0a1b2c3d"
	return v
}

func TestDefaultValuesAreValid(t *testing.T) {
	require.NoError(t, validValues().Validate("cloudforge"))
	require.NoError(t, Default().Validate("cloudforge"))
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	v, err := Load("")
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), v); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_OverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
replicaCount: 3
image:
  tag: v1.2.3
autoscaling:
  enabled: false
`), 0o644))

	v, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, v.ReplicaCount)
	assert.Equal(t, "v1.2.3", v.Image.Tag)
	assert.Equal(t, "IfNotPresent", v.Image.PullPolicy)
	assert.False(t, v.Autoscaling.Enabled)
	assert.Equal(t, 5, v.Autoscaling.MaxReplicas)
	assert.Equal(t, "LoadBalancer", v.Service.Type)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	v, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), v)
}

func TestLoad_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte("replicas: 3\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSecretData(t *testing.T) {
	tests := []struct {
		name    string
		secrets Secrets
		want    map[string]string
	}{
		{
			name:    "disabled",
			secrets: Secrets{},
			want:    map[string]string{},
		},
		{
			name:    "enabled without data",
			secrets: Secrets{Enabled: true},
			want:    map[string]string{},
		},
		{
			name:    "disabled with data",
			secrets: Secrets{Data: map[string]string{"API_KEY": "x"}},
			want:    map[string]string{},
		},
		{
			name:    "enabled with data",
			secrets: Secrets{Enabled: true, Data: map[string]string{"API_KEY": "x", "DB_PASSWORD": "y"}},
			want:    map[string]string{"API_KEY": "x", "DB_PASSWORD": "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validValues()
			v.Secrets = tt.secrets
			got := v.SecretData()
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSecretData_ReturnsCopy(t *testing.T) {
	v := validValues()
	v.Secrets = Secrets{Enabled: true, Data: map[string]string{"A": "1"}}

	v.SecretData()["A"] = "changed"
	assert.Equal(t, "1", v.Secrets.Data["A"])
}

func TestSecretsDisabledParses(t *testing.T) {
	v := validValues()
	require.NoError(t, Parse([]byte("secrets:\n  enabled: false\n"), &v))
	assert.False(t, v.SecretEnabled())
	assert.Empty(t, v.SecretData())
	assert.NoError(t, v.Validate("cloudforge"))
}

func TestProbeDefaults(t *testing.T) {
	v := validValues()

	liveness := v.Liveness()
	assert.Equal(t, Probe{Path: "/health", Port: 5000, InitialDelaySeconds: 30, PeriodSeconds: 10, TimeoutSeconds: 5, FailureThreshold: 3}, liveness)

	readiness := v.Readiness()
	assert.Equal(t, "/health", readiness.Path)
	assert.Equal(t, 5, readiness.InitialDelaySeconds)
}

func TestProbeOverrideFillsMissingFields(t *testing.T) {
	v := validValues()
	v.LivenessProbe = &Probe{Path: "/status", InitialDelaySeconds: 60}

	got := v.Liveness()
	assert.Equal(t, "/status", got.Path)
	assert.Equal(t, 60, got.InitialDelaySeconds)
	assert.Equal(t, 5000, got.Port)
	assert.Equal(t, 10, got.PeriodSeconds)
}

func TestResourceRequirements(t *testing.T) {
	v := validValues()
	assert.Equal(t, "100m", v.ResourceRequirements().Requests.CPU)

	v.Resources = &Resources{Limits: ResourceList{CPU: "1", Memory: "1Gi"}}
	assert.Equal(t, "1Gi", v.ResourceRequirements().Limits.Memory)
	assert.Empty(t, v.ResourceRequirements().Requests.CPU)
}

func TestFullName(t *testing.T) {
	v := validValues()
	assert.Equal(t, "cloudforge", v.FullName("cloudforge"))

	v.NameOverride = "web"
	assert.Equal(t, "web", v.FullName("cloudforge"))

	v.NameOverride = strings.Repeat("a", 70)
	assert.Len(t, v.FullName("x"), 63)

	v.NameOverride = strings.Repeat("a", 62) + "-b"
	assert.Equal(t, strings.Repeat("a", 62), v.FullName("x"))

	v.NameOverride = strings.Repeat("a", 62) + "-"
	assert.Equal(t, strings.Repeat("a", 62), v.FullName("x"))
}

func TestLabels(t *testing.T) {
	v := validValues()
	labels := v.Labels("cloudforge")

	for k, val := range v.SelectorLabels("cloudforge") {
		assert.Equal(t, val, labels[k])
	}
	assert.Equal(t, "latest", labels["app.kubernetes.io/version"])
	assert.Equal(t, "pulumi", labels["app.kubernetes.io/managed-by"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(v *Values)
		release string
		wantErr string
	}{
		{
			name:    "bad release name",
			release: "Cloud_Forge",
			wantErr: "release name",
		},
		{
			name:    "missing tag",
			mutate:  func(v *Values) { v.Image.Tag = "" },
			wantErr: "image.tag",
		},
		{
			name:    "bad service type",
			mutate:  func(v *Values) { v.Service.Type = "ExternalName" },
			wantErr: "service.type",
		},
		{
			name:    "port out of range",
			mutate:  func(v *Values) { v.Service.Port = 70000 },
			wantErr: "port 70000",
		},
		{
			name:    "autoscaling bounds",
			mutate:  func(v *Values) { v.Autoscaling.MinReplicas = 6 },
			wantErr: "minReplicas",
		},
		{
			name: "autoscaling without targets",
			mutate: func(v *Values) {
				v.Autoscaling.TargetCPUUtilizationPercentage = 0
				v.Autoscaling.TargetMemoryUtilizationPercentage = 0
			},
			wantErr: "cpu or memory target",
		},
		{
			name: "no replicas without autoscaling",
			mutate: func(v *Values) {
				v.Autoscaling.Enabled = false
				v.ReplicaCount = 0
			},
			wantErr: "replicaCount",
		},
		{
			name: "ingress without host",
			mutate: func(v *Values) {
				v.Ingress.Enabled = true
			},
			wantErr: "ingress.host",
		},
		{
			name:    "bad env name",
			mutate:  func(v *Values) { v.Env = map[string]string{"1BAD": "x"} },
			wantErr: "env \"1BAD\"",
		},
		{
			name: "bad secret key",
			mutate: func(v *Values) {
				v.Secrets = Secrets{Enabled: true, Data: map[string]string{"bad key": "x"}}
			},
			wantErr: "secrets.data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validValues()
			if tt.mutate != nil {
				tt.mutate(&v)
			}
			release := tt.release
			if release == "" {
				release = "cloudforge"
			}
			err := v.Validate(release)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
