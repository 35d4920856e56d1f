package offsets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
)

// ErrStale means no offset set is usable: the fetch failed and no cached set
// exists (or none matches the running build). Operating without offsets would
// produce garbage reads, so callers must treat this as fatal until a refresh
// succeeds.
var ErrStale = errors.New("no usable offset set")

// FetchError wraps a failed remote refresh. It is non-fatal when a cached set
// is available.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("offset fetch failed: %v", e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// Source supplies freshly fetched offset sets. The HTTP client implements it;
// tests inject fakes.
type Source interface {
	Fetch(ctx context.Context) (*Set, error)
}

// Catalog owns the active offset set. Refresh swaps the set atomically;
// readers holding the previous set keep resolving against it unchanged.
type Catalog struct {
	source    Source
	cachePath string
	wantBuild string
	cur       atomic.Pointer[Set]
}

// NewCatalog builds a catalog. wantBuild may be empty to accept any build.
// cachePath may be empty to disable the disk cache.
func NewCatalog(source Source, cachePath, wantBuild string) *Catalog {
	return &Catalog{source: source, cachePath: cachePath, wantBuild: wantBuild}
}

// Current returns the active set, or ErrStale when none has been installed.
func (c *Catalog) Current() (*Set, error) {
	if s := c.cur.Load(); s != nil {
		return s, nil
	}
	return nil, ErrStale
}

// Refresh fetches a new set and installs it. On fetch failure (including a
// build-tag mismatch) the previous set — or the disk cache — stays active and
// the FetchError is returned so the caller can report it. Only when nothing
// usable exists does Refresh return ErrStale.
func (c *Catalog) Refresh(ctx context.Context) error {
	set, err := c.source.Fetch(ctx)
	if err == nil && c.wantBuild != "" && set.Build != c.wantBuild {
		err = fmt.Errorf("build tag mismatch: fetched %q, running %q", set.Build, c.wantBuild)
		set = nil
	}
	if err == nil {
		c.cur.Store(set)
		c.saveCache(set)
		return nil
	}

	ferr := &FetchError{Err: err}
	if c.cur.Load() != nil {
		return ferr
	}
	if cached, cacheErr := c.loadCache(); cacheErr == nil {
		c.cur.Store(cached)
		return ferr
	}
	return fmt.Errorf("%w: %v", ErrStale, err)
}

type cacheFile struct {
	Build   string            `json:"build"`
	Entries []cacheEntry      `json:"entries"`
}

type cacheEntry struct {
	Name   string `json:"name"`
	Offset uint64 `json:"offset"`
	Kind   uint8  `json:"kind"`
}

func (c *Catalog) saveCache(s *Set) {
	if c.cachePath == "" {
		return
	}
	cf := cacheFile{Build: s.Build}
	for _, e := range s.entries {
		cf.Entries = append(cf.Entries, cacheEntry{Name: e.Name, Offset: uint64(e.Offset), Kind: uint8(e.Kind)})
	}
	data, err := json.Marshal(cf)
	if err != nil {
		return
	}
	_ = os.WriteFile(c.cachePath, data, 0644)
}

func (c *Catalog) loadCache() (*Set, error) {
	if c.cachePath == "" {
		return nil, errors.New("cache disabled")
	}
	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return nil, err
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("corrupt offsets cache: %w", err)
	}
	if c.wantBuild != "" && cf.Build != c.wantBuild {
		return nil, fmt.Errorf("cached build %q does not match running %q", cf.Build, c.wantBuild)
	}
	entries := make([]Entry, 0, len(cf.Entries))
	for _, e := range cf.Entries {
		entries = append(entries, Entry{Name: e.Name, Offset: uintptr(e.Offset), Kind: Kind(e.Kind)})
	}
	return NewSet(cf.Build, entries), nil
}
