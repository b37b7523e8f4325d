package main

import (
	"context"
	"os"

	"eks-cloudforge/internal/config"
	"eks-cloudforge/internal/kubeconfig"
	"eks-cloudforge/internal/stack"

	"github.com/spf13/cobra"
)

type kubeconfigOptions struct {
	path  string
	alias string
}

func newKubeconfigCmd(c *cli) *cobra.Command {
	var opts kubeconfigOptions
	cmd := &cobra.Command{
		Use:   "kubeconfig",
		Short: "Add the stack's cluster to kubeconfig",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runKubeconfig(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.path, "path", "", "kubeconfig file (default $KUBECONFIG or ~/.kube/config)")
	cmd.Flags().StringVar(&opts.alias, "alias", "", "context name (default the cluster ARN)")
	return cmd
}

func (c *cli) runKubeconfig(ctx context.Context, opts kubeconfigOptions) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	st, err := c.stackFor(ctx, cfg)
	if err != nil {
		return err
	}
	outs, err := st.Outputs(ctx)
	if err != nil {
		return err
	}
	api, err := c.newAWS(ctx, cfg.Region)
	if err != nil {
		return err
	}
	return c.writeKubeconfig(ctx, cfg, api, outs, opts)
}

func (c *cli) writeKubeconfig(ctx context.Context, cfg config.Config, api awsAPI, outs stack.Outputs, opts kubeconfigOptions) error {
	name, err := outs.String(stack.OutputClusterName)
	if err != nil {
		return err
	}
	cluster, err := api.DescribeCluster(ctx, name)
	if err != nil {
		return err
	}

	namespace := cfg.Namespace()
	if ns, err := outs.String(stack.OutputNamespace); err == nil {
		namespace = ns
	}
	kc, err := kubeconfig.Build(kubeconfig.Params{
		ClusterName: cluster.Name,
		Arn:         cluster.Arn,
		Endpoint:    cluster.Endpoint,
		CAData:      cluster.CertificateAuthority,
		Region:      api.Region(),
		Alias:       opts.alias,
		Namespace:   namespace,
		Profile:     os.Getenv("AWS_PROFILE"),
	})
	if err != nil {
		return err
	}

	path := opts.path
	if path == "" {
		if path, err = c.kubeconfigPath(); err != nil {
			return err
		}
	}
	if err := kubeconfig.WriteFile(path, kc); err != nil {
		return err
	}
	c.printer().Success("context %s written to %s", kc.CurrentContext, path)
	return nil
}
