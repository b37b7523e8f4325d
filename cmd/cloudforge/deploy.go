package main

import (
	"context"
	"time"

	"eks-cloudforge/internal/config"
	"eks-cloudforge/internal/pipeline"
	"eks-cloudforge/internal/preflight"
	"eks-cloudforge/internal/stack"

	"github.com/spf13/cobra"
)

type deployOptions struct {
	tag              string
	cleanupOnFailure bool
	skipVerify       bool
	timeout          time.Duration
}

func newDeployCmd(c *cli) *cobra.Command {
	var opts deployOptions
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Provision, build, deploy and verify in one run",
		Long: `Run the full deployment:

  1. preflight checks
  2. provision the infrastructure
  3. build and push the application image
  4. deploy the application with the new image
  5. configure kubectl
  6. verify the application is healthy

The first failing step stops the run. With --cleanup-on-failure the stack
is destroyed after a failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDeploy(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.tag, "tag", "t", "", "image tag (default from cloudforge.yaml)")
	cmd.Flags().BoolVar(&opts.cleanupOnFailure, "cleanup-on-failure", false, "destroy the stack when a step fails")
	cmd.Flags().BoolVar(&opts.skipVerify, "skip-verify", false, "do not wait for the health check")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "health check timeout (default from cloudforge.yaml)")
	return cmd
}

func (c *cli) runDeploy(ctx context.Context, opts deployOptions) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if opts.tag != "" {
		cfg.Image.Tag = opts.tag
	}
	out := c.printer()
	out.Section("EKS CloudForge deployment: " + cfg.Project + "/" + cfg.StackName())

	var (
		api  awsAPI
		st   stack.Stack
		outs stack.Outputs
	)

	p := pipeline.New(out).
		Add("Preflight checks", func(ctx context.Context) error {
			var err error
			if api, err = c.newAWS(ctx, cfg.Region); err != nil {
				return err
			}
			res, err := preflight.Run(ctx, c.runner, api, preflight.Tools)
			if err != nil {
				return err
			}
			out.Info("AWS account %s", res.Identity.Account)
			return nil
		}).
		Add("Provision infrastructure", func(ctx context.Context) error {
			var err error
			if st, err = c.stackFor(ctx, cfg); err != nil {
				return err
			}
			existing, err := st.Outputs(ctx)
			if err != nil {
				return err
			}
			// Without a pushed image the app release could never become
			// ready, so a new stack gets its infrastructure first.
			if _, deployed := existing[stack.OutputServiceName]; !deployed {
				if err := st.SetConfig(ctx, map[string]string{config.Key("deployApp"): "false"}); err != nil {
					return err
				}
			}
			outs, err = st.Up(ctx)
			return err
		}).
		Add("Build and push image", func(ctx context.Context) error {
			_, err := c.buildAndPush(ctx, cfg, api, outs)
			return err
		}).
		Add("Deploy application", func(ctx context.Context) error {
			err := st.SetConfig(ctx, map[string]string{
				config.Key("deployApp"): "true",
				config.Key("imageTag"):  cfg.Image.Tag,
			})
			if err != nil {
				return err
			}
			outs, err = st.Up(ctx)
			return err
		}).
		Add("Configure kubectl", func(ctx context.Context) error {
			return c.writeKubeconfig(ctx, cfg, api, outs, kubeconfigOptions{})
		})
	if !opts.skipVerify {
		p.Add("Verify deployment", func(ctx context.Context) error {
			return c.verify(ctx, cfg, outs, verifyOptions{timeout: opts.timeout})
		})
	}

	if opts.cleanupOnFailure {
		p.OnFailure(func(ctx context.Context, failed *pipeline.StepError) error {
			if st == nil {
				return nil
			}
			out.Warning("destroying stack %s after %q failed", cfg.StackName(), failed.Step)
			if err := st.Destroy(ctx); err != nil {
				return err
			}
			out.Success("stack %s destroyed", cfg.StackName())
			return nil
		})
	}

	if err := p.Run(ctx); err != nil {
		return err
	}

	out.Section("Deployment complete")
	for _, k := range []string{stack.OutputClusterName, stack.OutputRepositoryURL, stack.OutputNamespace, stack.OutputServiceName} {
		if v, err := outs.String(k); err == nil {
			out.Info("%s: %s", k, v)
		}
	}
	return nil
}
