package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"eks-cloudforge/internal/config"
	"eks-cloudforge/internal/stack"

	"github.com/spf13/cobra"
)

func newInfraCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infra",
		Short: "Manage the Pulumi stack",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "preview",
			Short: "Show the changes an update would make",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.runPreview(cmd.Context())
			},
		},
		newUpCmd(c),
		newDestroyCmd(c, "destroy"),
		newOutputsCmd(c),
	)
	return cmd
}

func newUpCmd(c *cli) *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Create or update the stack",
		Long: `Create or update the stack.

The image tag the app runs is kept unless --tag is given. The tag must
already be pushed to the stack's registry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.runUp(cmd.Context(), tag)
			return err
		},
	}
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "image tag to deploy")
	return cmd
}

func newCleanupCmd(c *cli) *cobra.Command {
	cmd := newDestroyCmd(c, "cleanup")
	cmd.Short = "Destroy every resource of the deployment"
	return cmd
}

func newDestroyCmd(c *cli, use string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   use,
		Short: "Destroy the stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to destroy without --yes")
			}
			return c.runDestroy(cmd.Context())
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm destruction")
	return cmd
}

func newOutputsCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Print the stack outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOutputs(cmd.Context(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print outputs as JSON")
	return cmd
}

func (c *cli) runPreview(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	st, err := c.stackFor(ctx, cfg)
	if err != nil {
		return err
	}
	changes, err := st.Preview(ctx)
	if err != nil {
		return err
	}
	out := c.printer()
	for _, op := range []string{"create", "update", "replace", "delete", "same"} {
		if n := changes[op]; n > 0 {
			out.Info("%s: %d", op, n)
		}
	}
	return nil
}

func (c *cli) runUp(ctx context.Context, tag string) (stack.Outputs, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := c.stackFor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if tag != "" {
		if err := st.SetConfig(ctx, map[string]string{config.Key("imageTag"): tag}); err != nil {
			return nil, err
		}
	}
	outs, err := st.Up(ctx)
	if err != nil {
		return nil, err
	}
	c.printer().Success("stack %s is up to date", cfg.StackName())
	return outs, nil
}

func (c *cli) runDestroy(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	st, err := c.stackFor(ctx, cfg)
	if err != nil {
		return err
	}
	out := c.printer()
	out.Warning("destroying stack %s", cfg.StackName())
	if err := st.Destroy(ctx); err != nil {
		return err
	}
	out.Success("stack %s destroyed", cfg.StackName())
	return nil
}

func (c *cli) runOutputs(ctx context.Context, asJSON bool) error {
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

	if asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outs)
	}
	for _, k := range outs.Keys() {
		fmt.Fprintf(c.stdout, "%s = %v\n", k, outs[k])
	}
	return nil
}
