package runner

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Fake records commands instead of running them. Errors maps a command
// name to the error its runs return; Outputs maps a full command line to
// what Output returns; Missing lists tools LookPath cannot find.
type Fake struct {
	mu       sync.Mutex
	Commands []Command
	Stdins   []string
	Errors   map[string]error
	Outputs  map[string]string
	Missing  map[string]bool
}

func (f *Fake) Run(_ context.Context, c Command) error {
	var stdin string
	if c.Stdin != nil {
		b, err := io.ReadAll(c.Stdin)
		if err != nil {
			return err
		}
		stdin = string(b)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, c)
	f.Stdins = append(f.Stdins, stdin)
	return f.Errors[c.Name]
}

func (f *Fake) Output(ctx context.Context, c Command) ([]byte, error) {
	if err := f.Run(ctx, c); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return []byte(f.Outputs[c.String()]), nil
}

func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Missing[name] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}

// Lines returns every recorded command as a string.
func (f *Fake) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Commands))
	for i, c := range f.Commands {
		out[i] = c.String()
	}
	return out
}
