// Package config loads cloudforge.yaml, the settings shared by the
// deployment commands.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation"
)

// DefaultFile is read when no --config flag is given.
const DefaultFile = "cloudforge.yaml"

// PulumiProject is the project name of the infrastructure program; stack
// config keys are namespaced by it.
const PulumiProject = "eks-cloudforge"

type Config struct {
	Project     string `yaml:"project"`
	Environment string `yaml:"environment"`
	Region      string `yaml:"region"`
	// Stack defaults to Environment.
	Stack   string `yaml:"stack"`
	WorkDir string `yaml:"workDir"`

	Image Image `yaml:"image"`
	App   App   `yaml:"app"`

	// Pulumi holds extra stack config, keyed without the project prefix.
	Pulumi map[string]string `yaml:"pulumi"`
}

type Image struct {
	Name       string `yaml:"name"`
	Dockerfile string `yaml:"dockerfile"`
	Context    string `yaml:"context"`
	Tag        string `yaml:"tag"`
	Platform   string `yaml:"platform"`
}

type App struct {
	Namespace     string        `yaml:"namespace"`
	HealthPath    string        `yaml:"healthPath"`
	VerifyTimeout time.Duration `yaml:"verifyTimeout"`
}

func Default() Config {
	return Config{
		Project:     "cloudforge",
		Environment: "dev",
		Region:      "us-west-2",
		WorkDir:     ".",
		Image: Image{
			Name:       "eks-cloudforge-app",
			Dockerfile: "Dockerfile",
			Context:    ".",
			Tag:        "latest",
			Platform:   "linux/amd64",
		},
		App: App{
			HealthPath:    "/health",
			VerifyTimeout: 5 * time.Minute,
		},
	}
}

// Load reads path over the defaults. A missing default file is not an
// error; a missing explicit file is.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return cfg, cfg.Validate()
	case err != nil:
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if !filepath.IsAbs(cfg.WorkDir) {
		cfg.WorkDir = filepath.Join(filepath.Dir(path), cfg.WorkDir)
	}
	return cfg, cfg.Validate()
}

var environments = map[string]bool{"dev": true, "staging": true, "prod": true}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	for _, msg := range validation.IsDNS1123Label(c.Project) {
		errs = append(errs, fmt.Errorf("project %q: %s", c.Project, msg))
	}
	if !environments[c.Environment] {
		errs = append(errs, fmt.Errorf("environment %q must be one of dev, staging, prod", c.Environment))
	}
	if c.Region == "" {
		errs = append(errs, errors.New("region is required"))
	}
	for _, msg := range validation.IsDNS1123Subdomain(c.Image.Name) {
		errs = append(errs, fmt.Errorf("image.name %q: %s", c.Image.Name, msg))
	}
	if c.Image.Tag == "" {
		errs = append(errs, errors.New("image.tag is required"))
	}
	if c.App.Namespace != "" {
		for _, msg := range validation.IsDNS1123Label(c.App.Namespace) {
			errs = append(errs, fmt.Errorf("app.namespace %q: %s", c.App.Namespace, msg))
		}
	}
	if !strings.HasPrefix(c.App.HealthPath, "/") {
		errs = append(errs, fmt.Errorf("app.healthPath %q must start with /", c.App.HealthPath))
	}
	if c.App.VerifyTimeout <= 0 {
		errs = append(errs, errors.New("app.verifyTimeout must be positive"))
	}
	for key := range c.Pulumi {
		if key == "" || strings.Contains(key, ":") {
			errs = append(errs, fmt.Errorf("pulumi key %q must be a bare key", key))
		}
	}
	return errors.Join(errs...)
}

// StackName is the Pulumi stack the commands operate on.
func (c Config) StackName() string {
	if c.Stack != "" {
		return c.Stack
	}
	return c.Environment
}

// Namespace is the Kubernetes namespace the app runs in.
func (c Config) Namespace() string {
	if c.App.Namespace != "" {
		return c.App.Namespace
	}
	return c.Project
}

// StackConfig returns the Pulumi config to set on the stack, fully
// qualified. The image tag is left out: it is only set once the image has
// been pushed, so opening a stack never rolls out an unpushed tag.
func (c Config) StackConfig() map[string]string {
	out := map[string]string{
		Key("projectName"):  c.Project,
		Key("environment"):  c.Environment,
		Key("appNamespace"): c.Namespace(),
		Key("deployApp"):    "true",
	}
	for k, v := range c.Pulumi {
		out[Key(k)] = v
	}
	out["aws:region"] = c.Region
	return out
}

// Key qualifies a config key with the Pulumi project name.
func Key(k string) string {
	return PulumiProject + ":" + k
}
