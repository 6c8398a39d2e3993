// Package territory loads every zone of one RFG territory: the zone files in
// the territory packfile plus the mission and activity layers that go with
// it.
package territory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cfoust/forge/pkg/classes"
	"github.com/cfoust/forge/pkg/vfs"
	"github.com/cfoust/forge/pkg/zones"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = fmt.Errorf("territory: %w", vfs.ErrNotFound)

const (
	ZoneExtension  = ".rfgzone_pc"
	LayerExtension = ".layer_pc"
)

type ZoneData struct {
	Name      string
	ShortName string
	Zone      *zones.Zone

	Persistent    bool
	MissionLayer  bool
	ActivityLayer bool

	// Whether the zone's objects are drawn and counted.
	Visible bool
}

func (z *ZoneData) ZoneObjects() []zones.Object { return z.Zone.Objects }
func (z *ZoneData) IsVisible() bool             { return z.Visible }

var _ classes.Source = (*ZoneData)(nil)

type Option func(*Territory)

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Territory) {
		t.log = logger
	}
}

type Territory struct {
	log       zerolog.Logger
	vfs       *vfs.PackfileVFS
	filename  string
	shortName string
	registry  *classes.Registry

	Zones           []*ZoneData
	LongestZoneName int
	loaded          bool
}

func New(v *vfs.PackfileVFS, filename, shortName string, registry *classes.Registry, options ...Option) *Territory {
	if registry == nil {
		registry = classes.NewRegistry()
	}

	t := &Territory{
		log:       log.Logger,
		vfs:       v,
		filename:  filename,
		shortName: shortName,
		registry:  registry,
	}

	for _, option := range options {
		option(t)
	}

	return t
}

func (t *Territory) Filename() string  { return t.filename }
func (t *Territory) ShortName() string { return t.shortName }
func (t *Territory) Loaded() bool      { return t.loaded }

func (t *Territory) Registry() *classes.Registry { return t.registry }

// layerArchives returns the mission and activity packfiles for the
// territories that have them.
func (t *Territory) layerArchives() (missions, activities string) {
	switch {
	case strings.Contains(t.filename, "terr01"):
		return "missions.vpp_pc", "activities.vpp_pc"
	case strings.Contains(t.filename, "dlc01"):
		return "dlcp01_missions.vpp_pc", "dlcp01_activities.vpp_pc"
	}
	return "", ""
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// layerName is how mission and activity layers are listed, for example
// "missions - m01_chain" for missions.vpp_pc/terr01_m01_chain.layer_pc.
func layerName(handle vfs.FileHandle) string {
	entry := stem(handle.Filename())
	if len(entry) > 7 {
		entry = entry[7:]
	}
	return stem(handle.ContainerName()) + " - " + entry
}

func (t *Territory) decode(data []byte, name string) (*ZoneData, error) {
	zone, err := zones.Read(data, name, t.registry)
	if err != nil {
		return nil, err
	}
	zone.GenerateObjectHierarchy()

	zoneData := &ZoneData{
		Name:       name,
		Zone:       zone,
		Persistent: strings.HasPrefix(name, "p_"),
	}
	t.SetZoneShortName(zoneData)
	return zoneData, nil
}

// LoadZoneData waits for the VFS to finish indexing and decodes every zone
// of the territory. Zones end up ordered by descending object count with
// the largest one visible.
func (t *Territory) LoadZoneData(ctx context.Context) error {
	err := t.vfs.WaitReady(ctx)
	if err != nil {
		return err
	}

	t.log.Info().Msgf("loading zone data from %s", t.filename)

	archive := t.vfs.GetPackfile(t.filename)
	if archive == nil {
		return fmt.Errorf("%w: %s is not in the data folder", ErrNotFound, t.filename)
	}

	var names []string
	for _, name := range archive.EntryNames() {
		extension := filepath.Ext(name)
		if extension != ZoneExtension && extension != LayerExtension {
			continue
		}
		names = append(names, name)
	}

	files, err := archive.ExtractFiles(names...)
	if err != nil {
		return fmt.Errorf("failed to extract zones from %s: %w", t.filename, err)
	}

	var loaded []*ZoneData
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}

		zoneData, err := t.decode(files[name], filepath.Base(name))
		if err != nil {
			return err
		}
		loaded = append(loaded, zoneData)
	}

	missions, activities := t.layerArchives()
	for _, layer := range []struct {
		archive  string
		mission  bool
		activity bool
	}{
		{missions, true, false},
		{activities, false, true},
	} {
		if layer.archive == "" {
			continue
		}

		handles, err := t.vfs.GetFilesIn(layer.archive, "*"+LayerExtension, true, false)
		if err != nil {
			return err
		}

		for _, handle := range handles {
			if err := ctx.Err(); err != nil {
				return err
			}

			data, err := handle.Get()
			if err != nil {
				return fmt.Errorf("failed to extract %s: %w", handle, err)
			}

			zoneData, err := t.decode(data, layerName(handle))
			if err != nil {
				return err
			}
			zoneData.MissionLayer = layer.mission
			zoneData.ActivityLayer = layer.activity
			loaded = append(loaded, zoneData)
		}
	}

	SortZones(loaded)

	longest := 0
	for _, zone := range loaded {
		if len(zone.ShortName) > longest {
			longest = len(zone.ShortName)
		}
	}

	if len(loaded) > 0 {
		loaded[0].Visible = true
	}

	sources := make([]classes.Source, len(loaded))
	for i, zone := range loaded {
		sources[i] = zone
	}
	t.registry.RegisterUnknown(sources)

	t.Zones = loaded
	t.LongestZoneName = longest
	t.loaded = true

	t.log.Info().Msgf("loaded %d zones from %s", len(loaded), t.filename)
	return nil
}

// SortZones orders zones by descending object count. Zones with the same
// count keep their order.
func SortZones(zoneData []*ZoneData) {
	sort.SliceStable(zoneData, func(i, j int) bool {
		return zoneData[i].Zone.Header.NumObjects > zoneData[j].Zone.Header.NumObjects
	})
}

// Sources returns the zones in the form the class registry counts.
func (t *Territory) Sources() []classes.Source {
	sources := make([]classes.Source, len(t.Zones))
	for i, zone := range t.Zones {
		sources[i] = zone
	}
	return sources
}

// UpdateObjectClassInstanceCounts recounts class instances over the
// visible zones.
func (t *Territory) UpdateObjectClassInstanceCounts() {
	t.registry.RecomputeInstanceCounts(t.Sources(), true)
}

// Reset drops the loaded zones.
func (t *Territory) Reset() {
	t.Zones = nil
	t.LongestZoneName = 0
	t.loaded = false
}

func (t *Territory) SetZoneShortName(zone *ZoneData) {
	zone.ShortName = ShortName(zone.Name, t.shortName, zone.Persistent)
}

// ShortName strips the territory prefix and the zone extension from a zone
// file name. Names that do not have both are returned unchanged. When
// nothing is left between the two, the prefix is kept.
func ShortName(fullName, territoryShortName string, persistent bool) string {
	prefix := territoryShortName + "_"
	if persistent {
		prefix = "p_" + prefix
	}

	postfix := strings.Index(fullName, ZoneExtension)
	if postfix == -1 {
		postfix = strings.Index(fullName, LayerExtension)
	}
	if postfix == -1 || !strings.HasPrefix(fullName, prefix) || postfix < len(prefix) {
		return fullName
	}

	if postfix == len(prefix) {
		return fullName[:postfix]
	}

	short := fullName[len(prefix):postfix]
	if persistent {
		return "p_" + short
	}
	return short
}
