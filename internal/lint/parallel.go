package lint

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
)

// source is one script queued for checking.
type source struct {
	path string
	src  []byte
}

// CheckFS checks every script under root in fsys. File paths in findings
// are relative to fsys. It runs in three phases:
//
//	Phase A (serial):   walk fsys and read every script.
//	Phase B (parallel): parse and check via a worker pool, one parser per file.
//	Phase C (serial):   merge findings ordered by file, then position.
func (c *Checker) CheckFS(ctx context.Context, fsys fs.FS, root string) ([]Finding, error) {
	// ---- Phase A: collect ----
	var items []source
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsScript(path) {
			return nil
		}
		src, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("lint: read %s: %w", path, err)
		}
		items = append(items, source{path: filepath.ToSlash(path), src: src})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	// ---- Phase B: check in parallel ----
	numWorkers := max(min(runtime.NumCPU(), len(items)), 1)

	workCh := make(chan source, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		path     string
		findings []Finding
		err      error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				found, err := c.Check(ctx, item.src)
				resultCh <- result{path: item.path, findings: found, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: merge ----
	var all []Finding
	var errs []error
	for res := range resultCh {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("lint: %s: %w", res.path, res.err))
			continue
		}
		for i := range res.findings {
			res.findings[i].File = res.path
		}
		all = append(all, res.findings...)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("lint: %d file(s) failed: %w", len(errs), errs[0])
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return all, nil
}
