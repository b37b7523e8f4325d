// Package chart models the values of the application chart and the helpers
// that fill in default blocks when a value is not overridden.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation"
)

const (
	AppName        = "eks-cloudforge-app"
	defaultAppPort = 5000
	maxNameLength  = 63
)

type Values struct {
	NameOverride   string            `yaml:"nameOverride"`
	ReplicaCount   int               `yaml:"replicaCount"`
	Image          Image             `yaml:"image"`
	Service        Service           `yaml:"service"`
	Resources      *Resources        `yaml:"resources"`
	Autoscaling    Autoscaling       `yaml:"autoscaling"`
	Ingress        Ingress           `yaml:"ingress"`
	LivenessProbe  *Probe            `yaml:"livenessProbe"`
	ReadinessProbe *Probe            `yaml:"readinessProbe"`
	Secrets        Secrets           `yaml:"secrets"`
	Env            map[string]string `yaml:"env"`
	PodAnnotations map[string]string `yaml:"podAnnotations"`
	NodeSelector   map[string]string `yaml:"nodeSelector"`
}

// Image.Repository may be left empty to use the registry created by the
// stack.
type Image struct {
	Repository string `yaml:"repository"`
	Tag        string `yaml:"tag"`
	PullPolicy string `yaml:"pullPolicy"`
}

type Service struct {
	Type       string `yaml:"type"`
	Port       int    `yaml:"port"`
	TargetPort int    `yaml:"targetPort"`
}

type ResourceList struct {
	CPU    string `yaml:"cpu"`
	Memory string `yaml:"memory"`
}

type Resources struct {
	Limits   ResourceList `yaml:"limits"`
	Requests ResourceList `yaml:"requests"`
}

type Autoscaling struct {
	Enabled                           bool `yaml:"enabled"`
	MinReplicas                       int  `yaml:"minReplicas"`
	MaxReplicas                       int  `yaml:"maxReplicas"`
	TargetCPUUtilizationPercentage    int  `yaml:"targetCPUUtilizationPercentage"`
	TargetMemoryUtilizationPercentage int  `yaml:"targetMemoryUtilizationPercentage"`
}

type Ingress struct {
	Enabled       bool              `yaml:"enabled"`
	ClassName     string            `yaml:"className"`
	Host          string            `yaml:"host"`
	Path          string            `yaml:"path"`
	Annotations   map[string]string `yaml:"annotations"`
	TLSSecretName string            `yaml:"tlsSecretName"`
}

type Probe struct {
	Path                string `yaml:"path"`
	Port                int    `yaml:"port"`
	InitialDelaySeconds int    `yaml:"initialDelaySeconds"`
	PeriodSeconds       int    `yaml:"periodSeconds"`
	TimeoutSeconds      int    `yaml:"timeoutSeconds"`
	FailureThreshold    int    `yaml:"failureThreshold"`
}

type Secrets struct {
	Enabled bool              `yaml:"enabled"`
	Data    map[string]string `yaml:"data"`
}

// Default returns the values used when no values file is given.
func Default() Values {
	return Values{
		ReplicaCount: 2,
		Image: Image{
			Tag:        "latest",
			PullPolicy: "IfNotPresent",
		},
		Service: Service{
			Type:       "LoadBalancer",
			Port:       80,
			TargetPort: defaultAppPort,
		},
		Autoscaling: Autoscaling{
			Enabled:                        true,
			MinReplicas:                    2,
			MaxReplicas:                    5,
			TargetCPUUtilizationPercentage: 70,
		},
		Ingress: Ingress{
			ClassName: "alb",
			Path:      "/",
		},
	}
}

// Load reads a values file over the defaults. An empty path yields the
// defaults.
func Load(path string) (Values, error) {
	v := Default()
	if path == "" {
		return v, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("reading values %s: %w", path, err)
	}
	if err := Parse(data, &v); err != nil {
		return v, fmt.Errorf("parsing values %s: %w", path, err)
	}
	return v, nil
}

// Parse decodes YAML onto v; keys absent from data keep their value.
func Parse(data []byte, v *Values) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty document leaves the defaults in place.
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// FullName is the name shared by every object of a release.
func (v Values) FullName(release string) string {
	name := release
	if v.NameOverride != "" {
		name = v.NameOverride
	}
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return strings.TrimSuffix(name, "-")
}

// SelectorLabels identify the pods of a release.
func (v Values) SelectorLabels(release string) map[string]string {
	return map[string]string{
		"app.kubernetes.io/name":     AppName,
		"app.kubernetes.io/instance": v.FullName(release),
	}
}

// Labels are set on every object of a release.
func (v Values) Labels(release string) map[string]string {
	labels := v.SelectorLabels(release)
	labels["app.kubernetes.io/managed-by"] = "pulumi"
	if v.Image.Tag != "" {
		labels["app.kubernetes.io/version"] = v.Image.Tag
	}
	return labels
}

// ImageRef is repository:tag.
func (v Values) ImageRef() string {
	return fmt.Sprintf("%s:%s", v.Image.Repository, v.Image.Tag)
}

// ContainerPort is the port the app listens on.
func (v Values) ContainerPort() int {
	if v.Service.TargetPort > 0 {
		return v.Service.TargetPort
	}
	return defaultAppPort
}

// ResourceRequirements returns the configured resources or the defaults
// sized for small burstable instances.
func (v Values) ResourceRequirements() Resources {
	if v.Resources != nil {
		return *v.Resources
	}
	return Resources{
		Limits:   ResourceList{CPU: "200m", Memory: "256Mi"},
		Requests: ResourceList{CPU: "100m", Memory: "128Mi"},
	}
}

// Liveness returns the liveness probe, filling unset fields from the
// default block.
func (v Values) Liveness() Probe {
	return mergeProbe(v.LivenessProbe, Probe{
		Path:                "/health",
		Port:                v.ContainerPort(),
		InitialDelaySeconds: 30,
		PeriodSeconds:       10,
		TimeoutSeconds:      5,
		FailureThreshold:    3,
	})
}

// Readiness returns the readiness probe, filling unset fields from the
// default block.
func (v Values) Readiness() Probe {
	return mergeProbe(v.ReadinessProbe, Probe{
		Path:                "/health",
		Port:                v.ContainerPort(),
		InitialDelaySeconds: 5,
		PeriodSeconds:       5,
		TimeoutSeconds:      3,
		FailureThreshold:    3,
	})
}

func mergeProbe(override *Probe, def Probe) Probe {
	if override == nil {
		return def
	}
	p := *override
	if p.Path == "" {
		p.Path = def.Path
	}
	if p.Port == 0 {
		p.Port = def.Port
	}
	if p.InitialDelaySeconds == 0 {
		p.InitialDelaySeconds = def.InitialDelaySeconds
	}
	if p.PeriodSeconds == 0 {
		p.PeriodSeconds = def.PeriodSeconds
	}
	if p.TimeoutSeconds == 0 {
		p.TimeoutSeconds = def.TimeoutSeconds
	}
	if p.FailureThreshold == 0 {
		p.FailureThreshold = def.FailureThreshold
	}
	return p
}

// SecretEnabled reports whether a Secret object is rendered at all.
func (v Values) SecretEnabled() bool {
	return v.Secrets.Enabled
}

// SecretData returns a copy of the secret data. It is empty, never nil,
// when secrets are disabled or no data is set.
func (v Values) SecretData() map[string]string {
	data := map[string]string{}
	if !v.Secrets.Enabled {
		return data
	}
	for k, val := range v.Secrets.Data {
		data[k] = val
	}
	return data
}

var serviceTypes = map[string]bool{
	"ClusterIP":    true,
	"NodePort":     true,
	"LoadBalancer": true,
}

// Validate checks the values for a release and reports every problem.
func (v Values) Validate(release string) error {
	var errs []error

	for _, msg := range validation.IsDNS1123Label(v.FullName(release)) {
		errs = append(errs, fmt.Errorf("release name %q: %s", v.FullName(release), msg))
	}
	if v.Image.Tag == "" {
		errs = append(errs, errors.New("image.tag is required"))
	}
	if !v.Autoscaling.Enabled && v.ReplicaCount < 1 {
		errs = append(errs, fmt.Errorf("replicaCount must be at least 1, got %d", v.ReplicaCount))
	}
	if !serviceTypes[v.Service.Type] {
		errs = append(errs, fmt.Errorf("service.type %q is not one of ClusterIP, NodePort, LoadBalancer", v.Service.Type))
	}
	for _, port := range []int{v.Service.Port, v.ContainerPort()} {
		for _, msg := range validation.IsValidPortNum(port) {
			errs = append(errs, fmt.Errorf("port %d: %s", port, msg))
		}
	}

	if a := v.Autoscaling; a.Enabled {
		if a.MinReplicas < 1 || a.MinReplicas > a.MaxReplicas {
			errs = append(errs, fmt.Errorf("autoscaling requires 1 <= minReplicas (%d) <= maxReplicas (%d)", a.MinReplicas, a.MaxReplicas))
		}
		if a.TargetCPUUtilizationPercentage == 0 && a.TargetMemoryUtilizationPercentage == 0 {
			errs = append(errs, errors.New("autoscaling needs a cpu or memory target"))
		}
		for _, pct := range []int{a.TargetCPUUtilizationPercentage, a.TargetMemoryUtilizationPercentage} {
			if pct < 0 || pct > 100 {
				errs = append(errs, fmt.Errorf("autoscaling target %d%% is out of range", pct))
			}
		}
	}

	if v.Ingress.Enabled {
		for _, msg := range validation.IsDNS1123Subdomain(v.Ingress.Host) {
			errs = append(errs, fmt.Errorf("ingress.host %q: %s", v.Ingress.Host, msg))
		}
	}

	for name := range v.Env {
		for _, msg := range validation.IsEnvVarName(name) {
			errs = append(errs, fmt.Errorf("env %q: %s", name, msg))
		}
	}
	for key := range v.SecretData() {
		for _, msg := range validation.IsConfigMapKey(key) {
			errs = append(errs, fmt.Errorf("secrets.data %q: %s", key, msg))
		}
	}

	return errors.Join(errs...)
}
