package xtbl

import (
	"github.com/cfoust/forge/pkg/vfs"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/sync/singleflight"
)

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = logger
	}
}

// group holds the parsed tables of one archive.
type group struct {
	files map[string]*File
}

// Manager parses xtbl files on first use and keeps them, grouped by the
// archive they came from.
type Manager struct {
	log zerolog.Logger
	vfs *vfs.PackfileVFS

	parsing singleflight.Group

	mutex  deadlock.RWMutex
	groups map[string]*group
}

func NewManager(v *vfs.PackfileVFS, options ...Option) *Manager {
	m := &Manager{
		log:    log.Logger,
		vfs:    v,
		groups: make(map[string]*group),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// Get returns a table that has already been parsed.
func (m *Manager) Get(vppName, name string) (*File, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	g, ok := m.groups[vppName]
	if !ok {
		return nil, false
	}
	file, ok := g.files[name]
	return file, ok
}

// Parse returns the table name from the archive vppName, reading and
// parsing it unless that already happened. Failures are not cached.
func (m *Manager) Parse(vppName, name string) (*File, error) {
	if file, ok := m.Get(vppName, name); ok {
		return file, nil
	}

	value, err, _ := m.parsing.Do(vppName+"/"+name, func() (any, error) {
		if file, ok := m.Get(vppName, name); ok {
			return file, nil
		}

		handle, err := m.vfs.GetFile(vppName, name)
		if err != nil {
			return nil, err
		}

		data, err := handle.Get()
		if err != nil {
			return nil, err
		}

		file, err := Parse(vppName, name, data)
		if err != nil {
			return nil, err
		}

		m.add(file)
		return file, nil
	})
	if err != nil {
		m.log.Error().Err(err).Str("packfile", vppName).Str("xtbl", name).Msg("failed to parse xtbl")
		return nil, err
	}

	return value.(*File), nil
}

func (m *Manager) add(file *File) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	g, ok := m.groups[file.VppName]
	if !ok {
		g = &group{files: make(map[string]*File)}
		m.groups[file.VppName] = g
	}
	g.files[file.Name] = file
}

// Group returns the parsed tables of one archive.
func (m *Manager) Group(vppName string) []*File {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	g, ok := m.groups[vppName]
	if !ok {
		return nil
	}

	out := make([]*File, 0, len(g.files))
	for _, file := range g.files {
		out = append(out, file)
	}
	sortFiles(out)
	return out
}
