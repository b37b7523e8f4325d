package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eks-cloudforge/internal/config"
	"eks-cloudforge/internal/health"
	"eks-cloudforge/internal/runner"
	"eks-cloudforge/internal/stack"

	"github.com/spf13/cobra"
)

// addressPath prints "<hostname or ip>:<port>" of a LoadBalancer service.
const addressPath = `jsonpath={.status.loadBalancer.ingress[0].hostname}{.status.loadBalancer.ingress[0].ip}:{.spec.ports[0].port}`

type verifyOptions struct {
	url     string
	timeout time.Duration
}

func newVerifyCmd(c *cli) *cobra.Command {
	var opts verifyOptions
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Wait until the application reports healthy",
		Long: `Poll the application's health endpoint until it reports "healthy".

Without --url the address of the application's LoadBalancer service is
looked up with kubectl.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runVerify(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "base URL of the application")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "how long to wait (default from cloudforge.yaml)")
	return cmd
}

func (c *cli) runVerify(ctx context.Context, opts verifyOptions) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	var outs stack.Outputs
	if opts.url == "" {
		st, err := c.stackFor(ctx, cfg)
		if err != nil {
			return err
		}
		if outs, err = st.Outputs(ctx); err != nil {
			return err
		}
	}
	return c.verify(ctx, cfg, outs, opts)
}

func (c *cli) verify(ctx context.Context, cfg config.Config, outs stack.Outputs, opts verifyOptions) error {
	base := opts.url
	if base == "" {
		var err error
		if base, err = c.serviceAddress(ctx, cfg, outs); err != nil {
			return err
		}
	}
	timeout := opts.timeout
	if timeout == 0 {
		timeout = cfg.App.VerifyTimeout
	}

	out := c.printer()
	url := health.URL(base, cfg.App.HealthPath)
	out.Info("waiting up to %s for %s", timeout, url)
	report, err := c.checker.Wait(ctx, url, timeout)
	if err != nil {
		return err
	}
	out.Success("application is %s (uptime %s, %d requests served)", report.Status, report.Uptime, report.RequestsProcessed)
	return nil
}

// serviceAddress asks kubectl for the load balancer address of the app's
// service.
func (c *cli) serviceAddress(ctx context.Context, cfg config.Config, outs stack.Outputs) (string, error) {
	service, err := outs.String(stack.OutputServiceName)
	if err != nil {
		return "", fmt.Errorf("no application service in the stack: %w", err)
	}
	namespace := cfg.Namespace()
	if ns, err := outs.String(stack.OutputNamespace); err == nil {
		namespace = ns
	}

	raw, err := c.runner.Output(ctx, runner.Command{
		Name: "kubectl",
		Args: []string{"get", "service", service, "--namespace", namespace, "--output", addressPath},
	})
	if err != nil {
		return "", fmt.Errorf("looking up service %s/%s: %w", namespace, service, err)
	}
	addr := strings.TrimSpace(string(raw))
	host, port, _ := strings.Cut(addr, ":")
	if host == "" {
		return "", fmt.Errorf("service %s/%s has no load balancer address yet", namespace, service)
	}
	if port == "" || port == "80" {
		return host, nil
	}
	return host + ":" + port, nil
}
