// Package stack drives the infrastructure program through the Pulumi
// automation API.
package stack

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optdestroy"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optpreview"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optup"
)

// Stack outputs the commands read.
const (
	OutputVpcID             = "vpcId"
	OutputRepositoryURL     = "ecrRepositoryUrl"
	OutputClusterName       = "clusterName"
	OutputClusterEndpoint   = "clusterEndpoint"
	OutputKubeconfigCommand = "kubeconfigCommand"
	OutputNamespace         = "namespace"
	OutputServiceName       = "serviceName"
)

const secretMask = "[secret]"

// Outputs are the stack outputs by name.
type Outputs map[string]any

// String returns a string output or an error naming the missing key.
func (o Outputs) String(key string) (string, error) {
	v, ok := o[key]
	if !ok {
		return "", fmt.Errorf("stack output %q is not set", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("stack output %q is not a string", key)
	}
	return s, nil
}

// Keys returns the output names in order.
func (o Outputs) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stack is the set of operations the commands run against a stack.
type Stack interface {
	Preview(ctx context.Context) (map[string]int, error)
	Up(ctx context.Context) (Outputs, error)
	Destroy(ctx context.Context) error
	Outputs(ctx context.Context) (Outputs, error)
	SetConfig(ctx context.Context, config map[string]string) error
}

// Auto is a Stack backed by a local Pulumi workspace.
type Auto struct {
	stack auto.Stack
	out   io.Writer
}

// Open selects or creates the stack for the program in workDir and sets
// its config. Engine progress is streamed to out.
func Open(ctx context.Context, name, workDir string, config map[string]string, out io.Writer) (*Auto, error) {
	s, err := auto.UpsertStackLocalSource(ctx, name, workDir)
	if err != nil {
		return nil, fmt.Errorf("opening stack %s in %s: %w", name, workDir, err)
	}
	a := &Auto{stack: s, out: out}
	if err := a.SetConfig(ctx, config); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Auto) SetConfig(ctx context.Context, config map[string]string) error {
	if len(config) == 0 {
		return nil
	}
	if err := a.stack.SetAllConfig(ctx, configMap(config)); err != nil {
		return fmt.Errorf("setting stack config: %w", err)
	}
	return nil
}

func configMap(config map[string]string) auto.ConfigMap {
	m := auto.ConfigMap{}
	for k, v := range config {
		m[k] = auto.ConfigValue{Value: v}
	}
	return m
}

func (a *Auto) Preview(ctx context.Context) (map[string]int, error) {
	res, err := a.stack.Preview(ctx, optpreview.ProgressStreams(a.out))
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	changes := map[string]int{}
	for op, n := range res.ChangeSummary {
		changes[string(op)] = n
	}
	return changes, nil
}

func (a *Auto) Up(ctx context.Context) (Outputs, error) {
	res, err := a.stack.Up(ctx, optup.ProgressStreams(a.out))
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	return outputs(res.Outputs), nil
}

func (a *Auto) Destroy(ctx context.Context) error {
	if _, err := a.stack.Destroy(ctx, optdestroy.ProgressStreams(a.out)); err != nil {
		return fmt.Errorf("destroy: %w", err)
	}
	return nil
}

func (a *Auto) Outputs(ctx context.Context) (Outputs, error) {
	out, err := a.stack.Outputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading outputs: %w", err)
	}
	return outputs(out), nil
}

// outputs masks secret values.
func outputs(m auto.OutputMap) Outputs {
	out := Outputs{}
	for k, v := range m {
		if v.Secret {
			out[k] = secretMask
			continue
		}
		out[k] = v.Value
	}
	return out
}
