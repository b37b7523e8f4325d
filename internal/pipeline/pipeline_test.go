package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"eks-cloudforge/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_AllSucceed(t *testing.T) {
	var buf bytes.Buffer
	var ran []string
	p := New(status.New(&buf))
	for _, name := range []string{"preflight", "infra", "build"} {
		p.Add(name, func(context.Context) error {
			ran = append(ran, name)
			return nil
		})
	}
	hookCalled := false
	p.OnFailure(func(context.Context, *StepError) error {
		hookCalled = true
		return nil
	})

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, []string{"preflight", "infra", "build"}, ran)
	assert.False(t, hookCalled)
	assert.Contains(t, buf.String(), "Step 3/3: build")
	assert.Len(t, p.Steps(), 3)
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	var ran []string
	var hooked *StepError

	p := New(status.New(&buf)).
		Add("one", func(context.Context) error { ran = append(ran, "one"); return nil }).
		Add("two", func(context.Context) error { ran = append(ran, "two"); return boom }).
		Add("three", func(context.Context) error { ran = append(ran, "three"); return nil }).
		OnFailure(func(_ context.Context, failed *StepError) error {
			hooked = failed
			return errors.New("cleanup failed")
		})

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "two", stepErr.Step)

	assert.Equal(t, []string{"one", "two"}, ran)
	require.NotNil(t, hooked)
	assert.Equal(t, "two", hooked.Step)
	assert.Contains(t, buf.String(), "[ERROR] two failed: boom")
	assert.Contains(t, buf.String(), "[ERROR] failure hook: cleanup failed")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	hooks := 0
	p := New(status.New(&bytes.Buffer{})).
		Add("one", func(context.Context) error { ran = true; return nil }).
		OnFailure(func(ctx context.Context, _ *StepError) error {
			hooks++
			assert.NoError(t, ctx.Err())
			return nil
		})

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
	assert.Equal(t, 1, hooks)
}
