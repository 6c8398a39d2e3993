// Package vfs indexes every packfile in a data folder and answers lookups
// across them, including files inside nested .str2_pc containers.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/cfoust/forge/pkg/assets"
	"github.com/cfoust/forge/pkg/packfile"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var ErrNotFound = packfile.ErrNotFound

var ErrAlreadyScanned = errors.New("vfs: scan already started")

const (
	PackfileExtension = ".vpp_pc"
	StreamExtension   = ".str2_pc"

	DefaultWorkers = 4
)

type Option func(*PackfileVFS)

func WithStore(store assets.Store) Option {
	return func(v *PackfileVFS) {
		v.cache = assets.NewIndexCache(store)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(v *PackfileVFS) {
		v.log = logger
	}
}

func WithWorkers(workers int) Option {
	return func(v *PackfileVFS) {
		if workers > 0 {
			v.workers = workers
		}
	}
}

type PackfileVFS struct {
	log     zerolog.Logger
	cache   *assets.IndexCache
	workers int

	folder string
	ready  chan struct{}

	mutex     deadlock.RWMutex
	started   bool
	packfiles map[string]*packfile.Packfile
	failures  map[string]error
	// Lazily indexed .str2_pc containers keyed by parent/child
	streams map[string]*packfile.Packfile
}

func New(options ...Option) *PackfileVFS {
	v := &PackfileVFS{
		log:       log.Logger,
		workers:   DefaultWorkers,
		ready:     make(chan struct{}),
		packfiles: make(map[string]*packfile.Packfile),
		failures:  make(map[string]error),
		streams:   make(map[string]*packfile.Packfile),
	}

	for _, option := range options {
		option(v)
	}

	return v
}

func (v *PackfileVFS) Folder() string {
	return v.folder
}

// Scan starts indexing every packfile in folder and returns without waiting
// for it to finish. Archives that fail to index are skipped and reported by
// Failures. The readiness gate opens once every archive has been attempted,
// even if ctx is cancelled first.
func (v *PackfileVFS) Scan(ctx context.Context, folder string) error {
	v.mutex.Lock()
	if v.started {
		v.mutex.Unlock()
		return ErrAlreadyScanned
	}
	v.started = true
	v.folder = folder
	v.mutex.Unlock()

	entries, err := os.ReadDir(folder)
	if err != nil {
		close(v.ready)
		return fmt.Errorf("%w: %v", packfile.ErrIO, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), PackfileExtension) {
			continue
		}
		paths = append(paths, filepath.Join(folder, entry.Name()))
	}

	go v.index(ctx, paths)
	return nil
}

func (v *PackfileVFS) index(ctx context.Context, paths []string) {
	defer close(v.ready)

	start := time.Now()
	progress := rate.Sometimes{Interval: time.Second}

	var group errgroup.Group
	group.SetLimit(v.workers)

	done := 0
	for _, path := range paths {
		path := path
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			p, err := v.open(ctx, path)

			v.mutex.Lock()
			defer v.mutex.Unlock()
			done++

			if err != nil {
				v.failures[filepath.Base(path)] = err
				v.log.Warn().Err(err).Str("packfile", path).Msg("failed to index packfile")
				return nil
			}

			v.packfiles[p.Name()] = p
			progress.Do(func() {
				v.log.Info().Msgf("indexed %d/%d packfiles", done, len(paths))
			})
			return nil
		})
	}

	group.Wait()

	v.mutex.RLock()
	v.log.Info().
		Int("packfiles", len(v.packfiles)).
		Int("failures", len(v.failures)).
		Dur("took", time.Since(start)).
		Msg("finished indexing")
	v.mutex.RUnlock()
}

// open indexes one packfile, going through the index cache when there is
// one. Cache problems are logged and never fail the index.
func (v *PackfileVFS) open(ctx context.Context, path string) (*packfile.Packfile, error) {
	if v.cache == nil {
		return packfile.Open(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", packfile.ErrIO, err)
	}

	directory, err := v.cache.Load(ctx, path, info)
	if err == nil {
		p, err := packfile.OpenDirectory(path, *directory)
		if err == nil {
			return p, nil
		}
		v.log.Warn().Err(err).Str("packfile", path).Msg("cached index rejected")
	} else if errors.Is(err, assets.Missing) {
		v.log.Debug().Err(err).Str("packfile", path).Msg("index cache miss")
	} else {
		v.log.Warn().Err(err).Str("packfile", path).Msg("index cache unavailable")
	}

	p, err := packfile.Open(path)
	if err != nil {
		return nil, err
	}

	err = v.cache.Save(ctx, path, info, &p.Directory)
	if err != nil {
		v.log.Warn().Err(err).Str("packfile", path).Msg("failed to cache index")
	}

	return p, nil
}

func (v *PackfileVFS) Ready() bool {
	select {
	case <-v.ready:
		return true
	default:
		return false
	}
}

// WaitReady blocks until the scan has finished or ctx is done.
func (v *PackfileVFS) WaitReady(ctx context.Context) error {
	select {
	case <-v.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failures returns the archives that could not be indexed.
func (v *PackfileVFS) Failures() map[string]error {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	out := make(map[string]error, len(v.failures))
	for name, err := range v.failures {
		out[name] = err
	}
	return out
}

// GetPackfile returns the archive with the given file name, or nil.
func (v *PackfileVFS) GetPackfile(name string) *packfile.Packfile {
	if !v.Ready() {
		return nil
	}

	v.mutex.RLock()
	defer v.mutex.RUnlock()
	return v.packfiles[name]
}

// Packfiles returns every indexed archive sorted by name.
func (v *PackfileVFS) Packfiles() []*packfile.Packfile {
	if !v.Ready() {
		return nil
	}

	v.mutex.RLock()
	out := make([]*packfile.Packfile, 0, len(v.packfiles))
	for _, p := range v.packfiles {
		out = append(out, p)
	}
	v.mutex.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name() < out[j].Name()
	})
	return out
}

// GetFile returns a handle to an entry at the top level of an archive.
func (v *PackfileVFS) GetFile(archive, entry string) (FileHandle, error) {
	p := v.GetPackfile(archive)
	if p == nil {
		return FileHandle{}, fmt.Errorf("%w: packfile %s", ErrNotFound, archive)
	}
	if !p.Contains(entry) {
		return FileHandle{}, fmt.Errorf("%w: %s/%s", ErrNotFound, archive, entry)
	}

	return FileHandle{
		Archive: archive,
		Entry:   entry,
		vfs:     v,
	}, nil
}

func streamKey(parent *packfile.Packfile, child string) string {
	return parent.Name() + "/" + child
}

// stream returns the indexed .str2_pc container named child inside parent.
func (v *PackfileVFS) stream(parent *packfile.Packfile, child string) (*packfile.Packfile, error) {
	v.mutex.RLock()
	p, ok := v.streams[streamKey(parent, child)]
	v.mutex.RUnlock()
	if ok {
		return p, nil
	}

	data, err := parent.ExtractSingleFile(child)
	if err != nil {
		return nil, err
	}

	p, err = packfile.FromBytes(child, data)
	if err != nil {
		return nil, err
	}

	return v.addStream(parent, p), nil
}

// addStream caches p unless another caller got there first.
func (v *PackfileVFS) addStream(parent *packfile.Packfile, p *packfile.Packfile) *packfile.Packfile {
	key := streamKey(parent, p.Name())

	v.mutex.Lock()
	defer v.mutex.Unlock()
	if existing, ok := v.streams[key]; ok {
		return existing
	}
	v.streams[key] = p
	return p
}

// openStreams indexes the .str2_pc containers named children inside
// parent. Containers that are not cached yet are extracted in one pass, so
// a compressed parent is inflated at most once. Containers that cannot be
// read are logged and left out.
func (v *PackfileVFS) openStreams(parent *packfile.Packfile, children []string) map[string]*packfile.Packfile {
	out := make(map[string]*packfile.Packfile, len(children))

	var missing []string
	v.mutex.RLock()
	for _, child := range children {
		if _, ok := out[child]; ok {
			continue
		}
		if p, ok := v.streams[streamKey(parent, child)]; ok {
			out[child] = p
			continue
		}
		if !slices.Contains(missing, child) {
			missing = append(missing, child)
		}
	}
	v.mutex.RUnlock()

	if len(missing) == 0 {
		return out
	}

	bodies, err := parent.ExtractFiles(missing...)
	if err != nil {
		// Find out which containers are unreadable
		for _, child := range missing {
			p, err := v.stream(parent, child)
			if err != nil {
				v.log.Warn().Err(err).Str("packfile", parent.Name()).Str("stream", child).Msg("failed to open stream container")
				continue
			}
			out[child] = p
		}
		return out
	}

	for _, child := range missing {
		p, err := packfile.FromBytes(child, bodies[child])
		if err != nil {
			v.log.Warn().Err(err).Str("packfile", parent.Name()).Str("stream", child).Msg("failed to open stream container")
			continue
		}
		out[child] = v.addStream(parent, p)
	}

	return out
}

func compile(pattern string) (glob.Glob, error) {
	matcher, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return matcher, nil
}

// search appends the entries of p that match to handles. It returns true
// once findOne is satisfied.
func (v *PackfileVFS) search(
	p *packfile.Packfile,
	matcher glob.Glob,
	recursive, findOne bool,
	handles *[]FileHandle,
) bool {
	names := p.EntryNames()
	for _, name := range names {
		if !matcher.Match(strings.ToLower(name)) {
			continue
		}

		*handles = append(*handles, FileHandle{
			Archive: p.Name(),
			Entry:   name,
			vfs:     v,
		})
		if findOne {
			return true
		}
	}

	if !recursive {
		return false
	}

	var children []string
	for _, name := range names {
		if strings.EqualFold(filepath.Ext(name), StreamExtension) {
			children = append(children, name)
		}
	}
	if len(children) == 0 {
		return false
	}

	streams := v.openStreams(p, children)
	for _, name := range children {
		stream, ok := streams[name]
		if !ok {
			continue
		}

		for _, inner := range stream.EntryNames() {
			if !matcher.Match(strings.ToLower(inner)) {
				continue
			}

			*handles = append(*handles, FileHandle{
				Archive:    p.Name(),
				SubArchive: name,
				Entry:      inner,
				vfs:        v,
			})
			if findOne {
				return true
			}
		}
	}

	return false
}

// GetFiles returns every entry whose name matches the glob pattern,
// ignoring case, across all archives in name order. With recursive set,
// entries inside .str2_pc containers are searched too. With findOne set, at
// most one handle is returned.
func (v *PackfileVFS) GetFiles(pattern string, recursive, findOne bool) ([]FileHandle, error) {
	matcher, err := compile(pattern)
	if err != nil {
		return nil, err
	}

	var handles []FileHandle
	for _, p := range v.Packfiles() {
		if v.search(p, matcher, recursive, findOne, &handles) {
			break
		}
	}

	return handles, nil
}

// GetFilesIn is GetFiles limited to one archive.
func (v *PackfileVFS) GetFilesIn(archive, pattern string, recursive, findOne bool) ([]FileHandle, error) {
	matcher, err := compile(pattern)
	if err != nil {
		return nil, err
	}

	p := v.GetPackfile(archive)
	if p == nil {
		return nil, nil
	}

	var handles []FileHandle
	v.search(p, matcher, recursive, findOne, &handles)
	return handles, nil
}
