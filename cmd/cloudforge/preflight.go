package main

import (
	"context"
	"sort"

	"eks-cloudforge/internal/preflight"

	"github.com/spf13/cobra"
)

func newPreflightCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check required tools and AWS credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.runPreflight(cmd.Context())
			return err
		},
	}
}

func (c *cli) runPreflight(ctx context.Context) (awsAPI, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	out := c.printer()

	api, err := c.newAWS(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	res, err := preflight.Run(ctx, c.runner, api, preflight.Tools)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(res.Tools))
	for name := range res.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out.Info("%s: %s", name, res.Tools[name])
	}
	out.Success("AWS account %s (%s)", res.Identity.Account, res.Identity.Arn)
	return api, nil
}
