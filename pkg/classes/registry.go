// Package classes keeps the table of zone object classes: their display
// color, whether they are shown, and how many instances the visible zones
// hold.
package classes

import (
	"fmt"
	"sort"

	"github.com/cfoust/forge/pkg/geom"
	"github.com/cfoust/forge/pkg/packfile"
	"github.com/cfoust/forge/pkg/zones"

	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

const Unknown = zones.UnknownClass

var ErrNotFound = fmt.Errorf("object class: %w", packfile.ErrNotFound)

type ObjectClass struct {
	Name         string
	Hash         uint32
	NumInstances int
	Color        geom.Vec3
	Show         bool
	ShowLabel    bool
}

// Source is a zone whose objects can be counted.
type Source interface {
	ZoneObjects() []zones.Object
	IsVisible() bool
}

type Registry struct {
	mutex   deadlock.RWMutex
	classes []ObjectClass
	byHash  map[uint32]int
	// Registration order, which breaks ties between equal counts
	inserted map[uint32]int
}

func NewRegistry() *Registry {
	r := &Registry{
		classes: make([]ObjectClass, len(Defaults)),
	}
	copy(r.classes, Defaults)
	r.inserted = make(map[uint32]int, len(r.classes))
	for i, class := range r.classes {
		if _, ok := r.inserted[class.Hash]; !ok {
			r.inserted[class.Hash] = i
		}
	}
	r.reindex()
	return r
}

func (r *Registry) reindex() {
	r.byHash = make(map[uint32]int, len(r.classes))
	for i, class := range r.classes {
		if _, ok := r.byHash[class.Hash]; !ok {
			r.byHash[class.Hash] = i
		}
	}
}

func (r *Registry) Get(hash uint32) (ObjectClass, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	index, ok := r.byHash[hash]
	if !ok {
		return ObjectClass{}, false
	}
	return r.classes[index], true
}

// NameOf lets the zone reader resolve class names.
func (r *Registry) NameOf(hash uint32) (string, bool) {
	class, ok := r.Get(hash)
	if !ok {
		return "", false
	}
	return class.Name, true
}

// Register adds a class with the default white color, shown. Registering
// a hash that is already known returns the existing class unchanged.
func (r *Registry) Register(name string, hash uint32) ObjectClass {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	class, _ := r.register(name, hash)
	return class
}

func (r *Registry) register(name string, hash uint32) (ObjectClass, bool) {
	if index, ok := r.byHash[hash]; ok {
		return r.classes[index], false
	}

	class := ObjectClass{
		Name:  name,
		Hash:  hash,
		Color: geom.NewVec3(1, 1, 1),
		Show:  true,
	}
	r.classes = append(r.classes, class)
	r.byHash[hash] = len(r.classes) - 1
	r.inserted[hash] = len(r.inserted)
	return class, true
}

// Lookup returns the class for hash. Unknown hashes are registered under
// name when register is set and are otherwise ErrNotFound.
func (r *Registry) Lookup(hash uint32, name string, register bool) (ObjectClass, error) {
	if class, ok := r.Get(hash); ok {
		return class, nil
	}

	if !register {
		return ObjectClass{}, fmt.Errorf("%w: hash %d", ErrNotFound, hash)
	}

	return r.Register(name, hash), nil
}

// ShouldShow reports whether objects of the class are drawn. Classes that
// were never registered are shown.
func (r *Registry) ShouldShow(hash uint32) bool {
	class, ok := r.Get(hash)
	if !ok {
		return true
	}
	return class.Show
}

func (r *Registry) SetShow(hash uint32, show bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	index, ok := r.byHash[hash]
	if !ok {
		return fmt.Errorf("%w: hash %d", ErrNotFound, hash)
	}
	r.classes[index].Show = show
	return nil
}

// RegisterUnknown registers every class used by the given zones that is not
// in the table yet and returns how many were added.
func (r *Registry) RegisterUnknown(sources []Source) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	added := 0
	for _, source := range sources {
		for _, object := range source.ZoneObjects() {
			_, isNew := r.register(object.Classname, object.ClassnameHash)
			if !isNew {
				continue
			}

			added++
			log.Warn().Msgf(
				"found unknown object class with hash %d and name %q",
				object.ClassnameHash,
				object.Classname,
			)
		}
	}

	return added
}

// RecomputeInstanceCounts recounts instances and orders the table by
// descending count. Classes with equal counts are in registration order, so
// recounting the same zones always gives the same table.
func (r *Registry) RecomputeInstanceCounts(sources []Source, visibleOnly bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i := range r.classes {
		r.classes[i].NumInstances = 0
	}

	for _, source := range sources {
		if visibleOnly && !source.IsVisible() {
			continue
		}

		for _, object := range source.ZoneObjects() {
			if index, ok := r.byHash[object.ClassnameHash]; ok {
				r.classes[index].NumInstances++
			}
		}
	}

	sort.SliceStable(r.classes, func(i, j int) bool {
		a, b := r.classes[i], r.classes[j]
		if a.NumInstances != b.NumInstances {
			return a.NumInstances > b.NumInstances
		}
		return r.inserted[a.Hash] < r.inserted[b.Hash]
	})
	r.reindex()
}

// Classes returns a copy of the table in its current order.
func (r *Registry) Classes() []ObjectClass {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]ObjectClass, len(r.classes))
	copy(out, r.classes)
	return out
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.classes)
}

var _ zones.ClassNamer = (*Registry)(nil)
