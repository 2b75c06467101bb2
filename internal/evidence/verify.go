package evidence

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultParallel bounds concurrent artifact checks.
const DefaultParallel = 4

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Failure records an artifact that could not be fetched.
type Failure struct {
	Path string
	Err  error
}

// Verify fetches the first byte of every artifact, at most parallel at a
// time, and returns the gallery without the ones that failed. Signed URLs
// are issued for GET, so a ranged GET is used rather than HEAD.
func Verify(ctx context.Context, client Doer, g *Gallery, parallel int) (*Gallery, []Failure, error) {
	if parallel <= 0 {
		parallel = DefaultParallel
	}

	var (
		mu       sync.Mutex
		failures []Failure
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)

	for _, grp := range g.groups {
		for _, a := range grp.Artifacts {
			eg.Go(func() error {
				if err := probe(egCtx, client, a.URL); err != nil {
					// Only a cancelled parent aborts the whole check.
					if ctx.Err() != nil {
						return ctx.Err()
					}
					mu.Lock()
					failures = append(failures, Failure{
						Path: a.Path,
						Err:  fmt.Errorf("%w: %s: %v", ErrArtifactUnavailable, a.Path, err),
					})
					mu.Unlock()
				}
				return nil
			})
		}
	}

	if err := eg.Wait(); err != nil {
		return g, nil, err
	}

	slices.SortFunc(failures, func(a, b Failure) int { return strings.Compare(a.Path, b.Path) })
	paths := make([]string, len(failures))
	for i, f := range failures {
		paths[i] = f.Path
	}
	return g.Drop(paths...), failures, nil
}

func probe(ctx context.Context, client Doer, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
