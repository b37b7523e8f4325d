// Package image builds the application image and pushes it to the
// stack's ECR repository with the docker CLI.
package image

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eks-cloudforge/internal/awsclient"
	"eks-cloudforge/internal/runner"
)

type BuildOptions struct {
	Name       string
	Tag        string
	Dockerfile string
	Context    string
	Platform   string
}

// LocalRef is name:tag.
func (o BuildOptions) LocalRef() string {
	return o.Name + ":" + o.Tag
}

type Builder struct {
	run runner.Runner
	dir string
}

// NewBuilder runs docker in dir.
func NewBuilder(r runner.Runner, dir string) *Builder {
	return &Builder{run: r, dir: dir}
}

func (b *Builder) docker(ctx context.Context, args ...string) error {
	return b.run.Run(ctx, runner.Command{Name: "docker", Args: args, Dir: b.dir})
}

// Build builds the image and returns its local reference.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (string, error) {
	if opts.Name == "" || opts.Tag == "" {
		return "", errors.New("image name and tag are required")
	}
	args := []string{"build"}
	if opts.Platform != "" {
		args = append(args, "--platform", opts.Platform)
	}
	if opts.Dockerfile != "" {
		args = append(args, "-f", opts.Dockerfile)
	}
	ctxDir := opts.Context
	if ctxDir == "" {
		ctxDir = "."
	}
	args = append(args, "-t", opts.LocalRef(), ctxDir)

	if err := b.docker(ctx, args...); err != nil {
		return "", fmt.Errorf("building %s: %w", opts.LocalRef(), err)
	}
	return opts.LocalRef(), nil
}

// Login logs docker into the registry. The password goes through stdin so
// it never shows up in the process list.
func (b *Builder) Login(ctx context.Context, auth awsclient.RegistryAuth) error {
	err := b.run.Run(ctx, runner.Command{
		Name:  "docker",
		Args:  []string{"login", "--username", auth.Username, "--password-stdin", auth.Host()},
		Dir:   b.dir,
		Stdin: strings.NewReader(auth.Password),
	})
	if err != nil {
		return fmt.Errorf("logging in to %s: %w", auth.Host(), err)
	}
	return nil
}

// Push tags localRef into repositoryURL and pushes it, returning the
// remote reference.
func (b *Builder) Push(ctx context.Context, localRef, repositoryURL, tag string) (string, error) {
	if repositoryURL == "" {
		return "", errors.New("repository url is required")
	}
	remote := repositoryURL + ":" + tag
	if err := b.docker(ctx, "tag", localRef, remote); err != nil {
		return "", fmt.Errorf("tagging %s: %w", remote, err)
	}
	if err := b.docker(ctx, "push", remote); err != nil {
		return "", fmt.Errorf("pushing %s: %w", remote, err)
	}
	return remote, nil
}
