// Package preflight checks that the tools and credentials a deployment
// needs are available before anything is created.
package preflight

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"eks-cloudforge/internal/awsclient"

	"golang.org/x/sync/errgroup"
)

// Tools are the binaries a full deployment shells out to.
var Tools = []string{"aws", "docker", "kubectl", "pulumi"}

type PathLooker interface {
	LookPath(name string) (string, error)
}

type IdentityGetter interface {
	CallerIdentity(ctx context.Context) (awsclient.Identity, error)
}

type Result struct {
	Tools    map[string]string
	Identity awsclient.Identity
}

// MissingToolsError lists every tool that was not found.
type MissingToolsError struct {
	Names []string
}

func (e *MissingToolsError) Error() string {
	return "required tools not found: " + strings.Join(e.Names, ", ")
}

// Run looks up tools concurrently and then verifies AWS credentials. A nil
// identity skips the credentials check.
func Run(ctx context.Context, looker PathLooker, identity IdentityGetter, tools []string) (*Result, error) {
	res := &Result{Tools: make(map[string]string, len(tools))}

	var (
		mu      sync.Mutex
		missing []string
	)
	g, _ := errgroup.WithContext(ctx)
	for _, name := range tools {
		g.Go(func() error {
			path, err := looker.LookPath(name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				missing = append(missing, name)
				return nil
			}
			res.Tools[name] = path
			return nil
		})
	}
	_ = g.Wait()

	if len(missing) > 0 {
		sort.Strings(missing)
		return res, &MissingToolsError{Names: missing}
	}

	if identity != nil {
		id, err := identity.CallerIdentity(ctx)
		if err != nil {
			return res, fmt.Errorf("checking aws credentials: %w", err)
		}
		res.Identity = id
	}
	return res, nil
}
