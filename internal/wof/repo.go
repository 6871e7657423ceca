package wof

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

const (
	documentExt    = ".geojson"
	defaultWorkers = 4
)

// Parsed is the outcome of parsing one file. Exactly one of Doc and Err
// is set.
type Parsed struct {
	Path string
	Doc  *Document
	Err  error
}

// Repo is a directory tree of WOF documents, e.g. a checkout of
// whosonfirst-data-admin-us/data.
type Repo struct {
	root    string
	workers int
}

// NewRepo validates root and returns a Repo that parses with the given
// number of workers (defaults to 4).
func NewRepo(root string, workers int) (*Repo, error) {
	if root == "" {
		return nil, eris.New("wof: source directory not configured")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, eris.Wrapf(err, "wof: source directory %s", root)
	}
	if !info.IsDir() {
		return nil, eris.Errorf("wof: source %s is not a directory", root)
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Repo{root: root, workers: workers}, nil
}

// Root returns the repository root directory.
func (r *Repo) Root() string { return r.root }

// Walk calls fn with the path of every *.geojson file under the root.
func (r *Repo) Walk(ctx context.Context, fn func(path string) error) error {
	err := filepath.WalkDir(r.root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), documentExt) {
			return nil
		}
		return fn(p)
	})
	return eris.Wrapf(err, "wof: walk %s", r.root)
}

// Each parses every document on a pool of workers and hands the results
// to fn one at a time on the calling goroutine. Results arrive in no
// particular order. A non-nil error from fn stops the walk and is
// returned.
func (r *Repo) Each(ctx context.Context, fn func(Parsed) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	paths := make(chan string, r.workers)
	results := make(chan Parsed, r.workers)

	g.Go(func() error {
		defer close(paths)
		return r.Walk(gCtx, func(p string) error {
			select {
			case paths <- p:
				return nil
			case <-gCtx.Done():
				return gCtx.Err()
			}
		})
	})

	var wg sync.WaitGroup
	for range r.workers {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for p := range paths {
				doc, err := ParseFile(p)
				select {
				case results <- Parsed{Path: p, Doc: doc, Err: err}:
				case <-gCtx.Done():
					return gCtx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var fnErr error
	for res := range results {
		if fnErr != nil {
			continue
		}
		if err := fn(res); err != nil {
			fnErr = err
			cancel()
		}
	}

	waitErr := g.Wait()
	if fnErr != nil {
		return fnErr
	}
	return waitErr
}
