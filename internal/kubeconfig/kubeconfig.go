// Package kubeconfig writes cluster access entries that authenticate with
// `aws eks get-token`, the way `aws eks update-kubeconfig` does.
package kubeconfig

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const execAPIVersion = "client.authentication.k8s.io/v1beta1"

type Params struct {
	ClusterName string
	// Arn names the entries; ClusterName is used when empty.
	Arn       string
	Endpoint  string
	CAData    string
	Region    string
	Alias     string
	Namespace string
	Profile   string
}

type Config struct {
	APIVersion     string         `yaml:"apiVersion"`
	Kind           string         `yaml:"kind"`
	CurrentContext string         `yaml:"current-context"`
	Clusters       []NamedCluster `yaml:"clusters"`
	Contexts       []NamedContext `yaml:"contexts"`
	Users          []NamedUser    `yaml:"users"`
}

type NamedCluster struct {
	Name    string  `yaml:"name"`
	Cluster Cluster `yaml:"cluster"`
}

type Cluster struct {
	Server                   string `yaml:"server"`
	CertificateAuthorityData string `yaml:"certificate-authority-data"`
}

type NamedContext struct {
	Name    string  `yaml:"name"`
	Context Context `yaml:"context"`
}

type Context struct {
	Cluster   string `yaml:"cluster"`
	User      string `yaml:"user"`
	Namespace string `yaml:"namespace,omitempty"`
}

type NamedUser struct {
	Name string `yaml:"name"`
	User User   `yaml:"user"`
}

type User struct {
	Exec *Exec `yaml:"exec,omitempty"`
}

type Exec struct {
	APIVersion string   `yaml:"apiVersion"`
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
	Env        []EnvVar `yaml:"env,omitempty"`
}

type EnvVar struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Build returns a kubeconfig holding only the given cluster.
func Build(p Params) (Config, error) {
	if p.ClusterName == "" || p.Endpoint == "" || p.Region == "" {
		return Config{}, errors.New("cluster name, endpoint and region are required")
	}
	name := p.Arn
	if name == "" {
		name = p.ClusterName
	}
	contextName := name
	if p.Alias != "" {
		contextName = p.Alias
	}

	exec := &Exec{
		APIVersion: execAPIVersion,
		Command:    "aws",
		Args:       []string{"--region", p.Region, "eks", "get-token", "--cluster-name", p.ClusterName, "--output", "json"},
	}
	if p.Profile != "" {
		exec.Env = []EnvVar{{Name: "AWS_PROFILE", Value: p.Profile}}
	}

	return Config{
		APIVersion:     "v1",
		Kind:           "Config",
		CurrentContext: contextName,
		Clusters: []NamedCluster{{
			Name:    name,
			Cluster: Cluster{Server: p.Endpoint, CertificateAuthorityData: p.CAData},
		}},
		Contexts: []NamedContext{{
			Name:    contextName,
			Context: Context{Cluster: name, User: name, Namespace: p.Namespace},
		}},
		Users: []NamedUser{{
			Name: name,
			User: User{Exec: exec},
		}},
	}, nil
}

// Merge adds the entries of cfg to the kubeconfig in existing, replacing
// entries of the same name and switching the current context. Fields this
// package does not model are kept.
func Merge(existing []byte, cfg Config) ([]byte, error) {
	doc := map[string]any{}
	if len(bytes.TrimSpace(existing)) > 0 {
		if err := yaml.Unmarshal(existing, &doc); err != nil {
			return nil, fmt.Errorf("parsing existing kubeconfig: %w", err)
		}
	}

	update := map[string]any{}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, &update); err != nil {
		return nil, err
	}

	for _, key := range []string{"clusters", "contexts", "users"} {
		merged, err := mergeNamed(doc[key], update[key])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		doc[key] = merged
	}
	doc["apiVersion"] = "v1"
	doc["kind"] = "Config"
	doc["current-context"] = cfg.CurrentContext

	return yaml.Marshal(doc)
}

func mergeNamed(existing, update any) ([]any, error) {
	var out []any
	if existing != nil {
		list, ok := existing.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list, got %T", existing)
		}
		out = append(out, list...)
	}
	updates, _ := update.([]any)

	for _, u := range updates {
		name := entryName(u)
		replaced := false
		for i, e := range out {
			if entryName(e) == name {
				out[i] = u
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, u)
		}
	}
	return out, nil
}

func entryName(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	name, _ := m["name"].(string)
	return name
}

// DefaultPath is the first KUBECONFIG entry, or ~/.kube/config.
func DefaultPath() (string, error) {
	if env := os.Getenv("KUBECONFIG"); env != "" {
		return strings.Split(env, string(os.PathListSeparator))[0], nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".kube", "config"), nil
}

// WriteFile merges cfg into the kubeconfig at path, creating it if needed.
func WriteFile(path string, cfg Config) error {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	merged, err := Merge(existing, cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, merged, 0o600)
}
