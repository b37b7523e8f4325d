// Package runner runs external commands such as docker and kubectl.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Command is one invocation of an external tool.
type Command struct {
	Name  string
	Args  []string
	Dir   string
	Stdin io.Reader
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner runs commands. Run streams output to the runner's writers;
// Output captures stdout instead.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
	Output(ctx context.Context, cmd Command) ([]byte, error)
	LookPath(name string) (string, error)
}

// Exec runs commands with os/exec.
type Exec struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (e *Exec) Run(ctx context.Context, c Command) error {
	return e.run(ctx, c, e.Stdout)
}

func (e *Exec) Output(ctx context.Context, c Command) ([]byte, error) {
	var out bytes.Buffer
	if err := e.run(ctx, c, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (e *Exec) run(ctx context.Context, c Command, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	cmd.Stdout = stdout
	var stderr bytes.Buffer
	if e.Stderr != nil {
		cmd.Stderr = io.MultiWriter(e.Stderr, &stderr)
	} else {
		cmd.Stderr = &stderr
	}
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", c.Name, err, lastLine(msg))
		}
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}

func (e *Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
