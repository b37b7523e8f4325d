package main

import (
	"context"

	"eks-cloudforge/internal/config"
	"eks-cloudforge/internal/image"
	"eks-cloudforge/internal/stack"

	"github.com/spf13/cobra"
)

func newBuildCmd(c *cli) *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the application image and push it to ECR",
		Long: `Build the application image with docker, log in to the stack's ECR
registry with a token from the AWS API, and push the image.

The repository URL is read from the stack outputs, so the stack must
already exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd.Context(), tag)
		},
	}
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "image tag (default from cloudforge.yaml)")
	return cmd
}

func (c *cli) runBuild(ctx context.Context, tag string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if tag != "" {
		cfg.Image.Tag = tag
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
	_, err = c.buildAndPush(ctx, cfg, api, outs)
	return err
}

// buildAndPush returns the pushed image reference.
func (c *cli) buildAndPush(ctx context.Context, cfg config.Config, api awsAPI, outs stack.Outputs) (string, error) {
	repo, err := outs.String(stack.OutputRepositoryURL)
	if err != nil {
		return "", err
	}
	out := c.printer()
	b := image.NewBuilder(c.runner, cfg.WorkDir)

	out.Info("building %s:%s", cfg.Image.Name, cfg.Image.Tag)
	local, err := b.Build(ctx, image.BuildOptions{
		Name:       cfg.Image.Name,
		Tag:        cfg.Image.Tag,
		Dockerfile: cfg.Image.Dockerfile,
		Context:    cfg.Image.Context,
		Platform:   cfg.Image.Platform,
	})
	if err != nil {
		return "", err
	}

	auth, err := api.RegistryAuth(ctx)
	if err != nil {
		return "", err
	}
	if err := b.Login(ctx, auth); err != nil {
		return "", err
	}

	remote, err := b.Push(ctx, local, repo, cfg.Image.Tag)
	if err != nil {
		return "", err
	}
	out.Success("pushed %s", remote)
	return remote, nil
}
