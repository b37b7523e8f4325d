package main

import (
	"context"
	"io"
	"os"

	"eks-cloudforge/internal/awsclient"
	"eks-cloudforge/internal/config"
	"eks-cloudforge/internal/health"
	"eks-cloudforge/internal/kubeconfig"
	"eks-cloudforge/internal/runner"
	"eks-cloudforge/internal/stack"
	"eks-cloudforge/internal/status"
)

// awsAPI is what the commands need from AWS.
type awsAPI interface {
	Region() string
	CallerIdentity(ctx context.Context) (awsclient.Identity, error)
	RegistryAuth(ctx context.Context) (awsclient.RegistryAuth, error)
	DescribeCluster(ctx context.Context, name string) (awsclient.Cluster, error)
}

// deps are the side-effecting collaborators of the commands.
type deps struct {
	stdout         io.Writer
	stderr         io.Writer
	runner         runner.Runner
	openStack      func(ctx context.Context, cfg config.Config, out io.Writer) (stack.Stack, error)
	newAWS         func(ctx context.Context, region string) (awsAPI, error)
	checker        *health.Checker
	kubeconfigPath func() (string, error)
}

func defaultDeps() deps {
	return deps{
		stdout: os.Stdout,
		stderr: os.Stderr,
		runner: &runner.Exec{Stdout: os.Stdout, Stderr: os.Stderr},
		openStack: func(ctx context.Context, cfg config.Config, out io.Writer) (stack.Stack, error) {
			return stack.Open(ctx, cfg.StackName(), cfg.WorkDir, cfg.StackConfig(), out)
		},
		newAWS: func(ctx context.Context, region string) (awsAPI, error) {
			return awsclient.New(ctx, region)
		},
		checker:        health.NewChecker(),
		kubeconfigPath: kubeconfig.DefaultPath,
	}
}

type cli struct {
	deps
	configPath string
}

func newCLI(d deps) *cli {
	return &cli{deps: d}
}

func (c *cli) loadConfig() (config.Config, error) {
	return config.Load(c.configPath)
}

func (c *cli) printer() *status.Printer {
	return status.New(c.stdout)
}

func (c *cli) stackFor(ctx context.Context, cfg config.Config) (stack.Stack, error) {
	return c.openStack(ctx, cfg, c.stdout)
}
