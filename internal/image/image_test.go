package image

import (
	"context"
	"errors"
	"testing"

	"eks-cloudforge/internal/awsclient"
	"eks-cloudforge/internal/runner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repo = "123456789012.dkr.ecr.us-west-2.amazonaws.com/cloudforge-dev-app-0a1b2c3d"

func TestBuildLoginPush(t *testing.T) {
	f := &runner.Fake{}
	b := NewBuilder(f, "/src")
	ctx := context.Background()

	ref, err := b.Build(ctx, BuildOptions{
		Name:       "eks-cloudforge-app",
		Tag:        "v1",
		Dockerfile: "Dockerfile",
		Context:    ".",
		Platform:   "linux/amd64",
	})
	require.NoError(t, err)
	assert.Equal(t, "eks-cloudforge-app:v1", ref)

	require.NoError(t, b.Login(ctx, awsclient.RegistryAuth{
		Username: "AWS",
		Password: "secret",
		Endpoint: "https://123456789012.dkr.ecr.us-west-2.amazonaws.com",
	}))

	remote, err := b.Push(ctx, ref, repo, "v1")
	require.NoError(t, err)
	assert.Equal(t, repo+":v1", remote)

	assert.Equal(t, []string{
		"docker build --platform linux/amd64 -f Dockerfile -t eks-cloudforge-app:v1 .",
		"docker login --username AWS --password-stdin 123456789012.dkr.ecr.us-west-2.amazonaws.com",
		"docker tag eks-cloudforge-app:v1 " + repo + ":v1",
		"docker push " + repo + ":v1",
	}, f.Lines())
	assert.Equal(t, "secret", f.Stdins[1])
	assert.NotContains(t, f.Lines()[1], "secret")
	for _, c := range f.Commands {
		assert.Equal(t, "/src", c.Dir)
	}
}

func TestBuild_Errors(t *testing.T) {
	_, err := NewBuilder(&runner.Fake{}, ".").Build(context.Background(), BuildOptions{Name: "app"})
	assert.Error(t, err)

	f := &runner.Fake{Errors: map[string]error{"docker": errors.New("exit status 1")}}
	_, err = NewBuilder(f, ".").Build(context.Background(), BuildOptions{Name: "app", Tag: "v1"})
	assert.ErrorContains(t, err, "building app:v1")
}

func TestPush_RequiresRepository(t *testing.T) {
	f := &runner.Fake{}
	_, err := NewBuilder(f, ".").Push(context.Background(), "app:v1", "", "v1")
	assert.Error(t, err)
	assert.Empty(t, f.Commands)
}
