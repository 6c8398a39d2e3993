package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cfoust/forge/pkg/geom"
	"github.com/cfoust/forge/pkg/peg"
	"github.com/cfoust/forge/pkg/terrain"
	"github.com/cfoust/forge/pkg/vfs"

	opt "github.com/repeale/fp-go/option"
	"golang.org/x/sync/errgroup"
)

const (
	zoneClass           = "obj_zone"
	terrainFileProperty = "terrain_file_name"
)

type tile struct {
	// File name without extension
	Name     string
	Position geom.Vec3
	Handle   vfs.FileHandle
}

func (d *Document) work(ctx context.Context) {
	defer func() {
		d.mutex.Lock()
		d.workerDone = true
		d.mutex.Unlock()
	}()

	d.setStatus(Status{Stage: StageZones, Message: "Loading zones for " + d.title})

	err := d.territory.LoadZoneData(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		d.fail(err)
		return
	}

	d.log.Info().Int("zones", len(d.territory.Zones)).Msg("loaded zones")

	if ctx.Err() != nil {
		return
	}

	tiles := d.findTiles(ctx)

	d.setStatus(Status{
		Stage:      StageTerrain,
		Message:    "Loading terrain meshes for " + d.title,
		TilesTotal: len(tiles),
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.workers)
	for _, t := range tiles {
		if groupCtx.Err() != nil {
			break
		}

		t := t
		group.Go(func() error {
			err := d.loadTile(groupCtx, t)
			switch {
			case err == nil:
				d.updateStatus(func(s *Status) { s.TilesLoaded++ })
			case errors.Is(err, context.Canceled):
			default:
				d.log.Warn().Err(err).Str("tile", t.Name).Msg("failed to load terrain")
				d.updateStatus(func(s *Status) { s.TilesFailed++ })
			}
			// Tile failures stay local so siblings keep loading
			return nil
		})
	}
	group.Wait()

	if ctx.Err() != nil {
		return
	}

	status := d.LastStatus()
	d.log.Info().
		Int("loaded", status.TilesLoaded).
		Int("failed", status.TilesFailed).
		Msg("done loading terrain")

	d.updateStatus(func(s *Status) {
		s.Stage = StageDone
		s.Message = "Loaded " + d.title
	})
}

// findTiles resolves the terrain tile referenced by each zone's obj_zone
// object. Zones without one are skipped.
func (d *Document) findTiles(ctx context.Context) []tile {
	var tiles []tile
	for _, zone := range d.territory.Zones {
		if ctx.Err() != nil {
			return nil
		}

		object := zone.Zone.GetSingleObject(zoneClass)
		if object == nil {
			continue
		}

		property := object.StringProperty(terrainFileProperty)
		if opt.IsNone(property) {
			continue
		}
		name := strings.TrimRight(property.Value, "\x00")
		if name == "" {
			continue
		}

		handles, err := d.vfs.GetFiles(name+terrain.CpuExtension, true, true)
		if err != nil || len(handles) == 0 {
			d.log.Warn().Str("zone", zone.Name).Str("tile", name).Msg("terrain mesh not found")
			continue
		}

		tiles = append(tiles, tile{
			Name:     name,
			Position: object.Center(),
			Handle:   handles[0],
		})
	}

	return tiles
}

func (d *Document) loadTile(ctx context.Context, t tile) error {
	container, err := t.Handle.Container()
	if err != nil {
		return err
	}

	cpuName := t.Handle.Filename()
	gpuName := strings.TrimSuffix(cpuName, terrain.CpuExtension) + terrain.GpuExtension
	files, err := container.ExtractFiles(cpuName, gpuName)
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	meshes, err := terrain.Decode(ctx, files[cpuName], files[gpuName])
	if err != nil {
		return fmt.Errorf("%s: %w", t.Handle, err)
	}

	instance := &terrain.Instance{
		Name:     t.Name,
		Position: t.Position,
		Meshes:   *meshes,
	}

	blend, err := d.loadBlendTexture(t.Name)
	if err != nil {
		d.log.Warn().Err(err).Str("tile", t.Name).Msg("no blend texture")
	} else {
		instance.BlendTexture = blend
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if !d.publish(ctx, instance) {
		return context.Canceled
	}

	d.log.Debug().Str("tile", t.Name).Msg("loaded terrain")
	return nil
}

func (d *Document) loadBlendTexture(name string) (*terrain.BlendTexture, error) {
	cpuName := name + terrain.BlendCpuSuffix
	handles, err := d.vfs.GetFiles(cpuName, true, true)
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return nil, fmt.Errorf("%w: %s", vfs.ErrNotFound, cpuName)
	}

	container, err := handles[0].Container()
	if err != nil {
		return nil, err
	}

	cpuName = handles[0].Filename()
	gpuName := strings.TrimSuffix(cpuName, ".cvbm_pc") + terrain.BlendGpuExtension
	files, err := container.ExtractFiles(cpuName, gpuName)
	if err != nil {
		return nil, err
	}

	texture, err := peg.Read(files[cpuName], files[gpuName])
	if err != nil {
		return nil, err
	}

	data, err := texture.TextureData(0)
	if err != nil {
		return nil, err
	}

	entry := texture.Entries[0]
	return &terrain.BlendTexture{
		Name:   texture.Names[0],
		Width:  int(entry.Width),
		Height: int(entry.Height),
		Format: uint16(entry.BitmapFormat),
		Data:   data,
	}, nil
}
