package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cfoust/forge/pkg/assets"
	"github.com/cfoust/forge/pkg/catalog"
	"github.com/cfoust/forge/pkg/classes"
	"github.com/cfoust/forge/pkg/config"
	"github.com/cfoust/forge/pkg/document"
	"github.com/cfoust/forge/pkg/peg"
	"github.com/cfoust/forge/pkg/terrain"
	"github.com/cfoust/forge/pkg/vfs"
	"github.com/cfoust/forge/pkg/xtbl"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).PaddingRight(2)
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

// newTable returns a borderless table for terminal output.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func printTable(t *table.Table) error {
	_, err := fmt.Fprintln(os.Stdout, t.Render())
	return err
}

func packfilesCommand(ctx context.Context, cfg *config.Config) error {
	v, err := openVFS(ctx, cfg)
	if err != nil {
		return err
	}

	t := newTable("NAME", "ENTRIES", "COMPRESSED", "CONDENSED")
	for _, p := range v.Packfiles() {
		t.Row(
			p.Name(),
			fmt.Sprint(p.NumEntries()),
			fmt.Sprint(p.Compressed()),
			fmt.Sprint(p.Condensed()),
		)
	}
	return printTable(t)
}

func find(v *vfs.PackfileVFS, archive, pattern string, recursive bool) ([]vfs.FileHandle, error) {
	if archive != "" {
		if v.GetPackfile(archive) == nil {
			return nil, fmt.Errorf("%w: packfile %s", vfs.ErrNotFound, archive)
		}
		return v.GetFilesIn(archive, pattern, recursive, false)
	}
	return v.GetFiles(pattern, recursive, false)
}

func lsCommand(ctx context.Context, cfg *config.Config) error {
	v, err := openVFS(ctx, cfg)
	if err != nil {
		return err
	}

	handles, err := find(v, CLI.Ls.Archive, CLI.Ls.Pattern, CLI.Ls.Recursive)
	if err != nil {
		return err
	}

	for _, handle := range handles {
		fmt.Println(handle)
	}
	return nil
}

func extractCommand(ctx context.Context, cfg *config.Config) error {
	v, err := openVFS(ctx, cfg)
	if err != nil {
		return err
	}

	handles, err := find(v, CLI.Extract.Archive, CLI.Extract.Pattern, true)
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		return fmt.Errorf("%w: nothing matches %s", vfs.ErrNotFound, CLI.Extract.Pattern)
	}

	for _, handle := range handles {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := handle.Get()
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", handle, err)
		}

		target := filepath.Join(CLI.Extract.Out, handle.Archive, handle.SubArchive, handle.Entry)
		err = os.MkdirAll(filepath.Dir(target), 0755)
		if err != nil {
			return err
		}

		err = assets.WriteBytes(data, target)
		if err != nil {
			return err
		}

		log.Debug().Str("file", target).Int("size", len(data)).Msg("extracted")
	}

	log.Info().Int("files", len(handles)).Str("out", CLI.Extract.Out).Msg("extracted files")
	return nil
}

func zonesCommand(ctx context.Context, cfg *config.Config) error {
	t, err := loadTerritory(ctx, cfg, CLI.Zones.Territory)
	if err != nil {
		return err
	}

	out := newTable("ZONE", "OBJECTS", "KIND", "DISTRICT", "FILE")
	for _, zone := range t.Zones {
		kind := "zone"
		switch {
		case zone.Persistent:
			kind = "persistent"
		case zone.MissionLayer:
			kind = "mission"
		case zone.ActivityLayer:
			kind = "activity"
		}

		out.Row(
			zone.ShortName,
			fmt.Sprint(zone.Zone.NumObjects()),
			kind,
			zone.Zone.DistrictName(cfg.Districts),
			zone.Name,
		)
	}
	return printTable(out)
}

func classesCommand(ctx context.Context, cfg *config.Config) error {
	t, err := loadTerritory(ctx, cfg, CLI.Classes.Territory)
	if err != nil {
		return err
	}

	registry := t.Registry()
	sources := t.Sources()
	registry.RecomputeInstanceCounts(sources, CLI.Classes.Visible)

	out := newTable("CLASS", "HASH", "INSTANCES")
	for _, class := range registry.Classes() {
		if class.NumInstances == 0 {
			continue
		}
		name := class.Name
		if name == classes.Unknown {
			name = fmt.Sprintf("%s (%d)", name, class.Hash)
		}
		out.Row(name, fmt.Sprint(class.Hash), fmt.Sprint(class.NumInstances))
	}
	return printTable(out)
}

func terrainCommand(ctx context.Context, cfg *config.Config) error {
	v, err := openVFS(ctx, cfg)
	if err != nil {
		return err
	}

	target := resolveTerritory(cfg, CLI.Terrain.Territory)
	d, err := document.Open(ctx, document.Options{
		VFS:                v,
		Registry:           classes.NewRegistry(),
		TerritoryFilename:  target.File,
		TerritoryShortname: target.ShortName,
		MaxTerrainWorkers:  cfg.Workers.Terrain,
	})
	if err != nil {
		return err
	}
	defer d.Close()

	subscriber := d.Subscribe()
	defer subscriber.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var tiles []*terrain.Instance
	for !d.WorkerDone() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case status := <-subscriber.Recv():
			log.Debug().
				Str("stage", status.Stage.String()).
				Int("loaded", status.TilesLoaded).
				Int("total", status.TilesTotal).
				Msg(status.Message)
		case <-ticker.C:
		}

		if d.NewInstanceAdded() {
			d.Drain(func(instance *terrain.Instance) {
				tiles = append(tiles, instance)
			})
		}
	}
	d.Drain(func(instance *terrain.Instance) {
		tiles = append(tiles, instance)
	})

	if d.Failed() {
		return d.Err()
	}

	t := newTable("TILE", "POSITION", "VERTICES", "INDICES", "BLEND")
	for _, tile := range tiles {
		vertices, indices := 0, 0
		for _, submesh := range tile.Meshes {
			vertices += len(submesh.Vertices)
			indices += len(submesh.Indices)
		}

		blend := "-"
		if tile.BlendTexture != nil {
			blend = fmt.Sprintf(
				"%dx%d %s",
				tile.BlendTexture.Width,
				tile.BlendTexture.Height,
				peg.Format(tile.BlendTexture.Format),
			)
		}

		t.Row(
			tile.Name,
			fmt.Sprintf("(%.0f, %.0f, %.0f)", tile.Position.X, tile.Position.Y, tile.Position.Z),
			fmt.Sprint(vertices),
			fmt.Sprint(indices),
			blend,
		)
	}
	err = printTable(t)
	if err != nil {
		return err
	}

	status := d.LastStatus()
	log.Info().
		Int("loaded", status.TilesLoaded).
		Int("failed", status.TilesFailed).
		Msg("terrain loaded")
	return nil
}

func scaled(img image.Image, size int) image.Image {
	bounds := img.Bounds()
	if size <= 0 || (bounds.Dx() <= size && bounds.Dy() <= size) {
		return img
	}

	width, height := size, size
	if bounds.Dx() > bounds.Dy() {
		height = bounds.Dy() * size / bounds.Dx()
	} else {
		width = bounds.Dx() * size / bounds.Dy()
	}

	out := image.NewRGBA(image.Rect(0, 0, max(width, 1), max(height, 1)))
	draw.CatmullRom.Scale(out, out.Bounds(), img, bounds, draw.Src, nil)
	return out
}

func textureCommand(ctx context.Context, cfg *config.Config) error {
	v, err := openVFS(ctx, cfg)
	if err != nil {
		return err
	}

	handles, err := v.GetFiles(CLI.Texture.Name, true, true)
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		return fmt.Errorf("%w: %s", vfs.ErrNotFound, CLI.Texture.Name)
	}

	handle := handles[0]
	container, err := handle.Container()
	if err != nil {
		return err
	}

	cpuName := handle.Filename()
	gpuName := strings.TrimSuffix(cpuName, filepath.Ext(cpuName)) + terrain.BlendGpuExtension
	files, err := container.ExtractFiles(cpuName, gpuName)
	if err != nil {
		return err
	}

	texture, err := peg.Read(files[cpuName], files[gpuName])
	if err != nil {
		return err
	}

	img, err := texture.Image(CLI.Texture.Index)
	if err != nil {
		return err
	}

	out, err := os.Create(CLI.Texture.Out)
	if err != nil {
		return err
	}
	defer out.Close()

	err = png.Encode(out, scaled(img, CLI.Texture.Size))
	if err != nil {
		return err
	}

	log.Info().
		Str("texture", texture.Names[CLI.Texture.Index]).
		Str("format", texture.Entries[CLI.Texture.Index].BitmapFormat.String()).
		Str("out", CLI.Texture.Out).
		Msg("wrote preview")
	return out.Close()
}

func asmCommand(ctx context.Context, cfg *config.Config) error {
	v, err := openVFS(ctx, cfg)
	if err != nil {
		return err
	}

	p := v.GetPackfile(CLI.Asm.Archive)
	if p == nil {
		return fmt.Errorf("%w: packfile %s", vfs.ErrNotFound, CLI.Asm.Archive)
	}

	if CLI.Asm.Primitives {
		out := newTable("ASM", "CONTAINER", "PRIMITIVE", "TYPE", "ALLOCATOR", "HEADER", "DATA")
		for _, asm := range p.AsmFiles() {
			for _, container := range asm.Containers {
				for _, primitive := range container.Primitives {
					out.Row(
						asm.Name,
						container.Name,
						primitive.Name,
						fmt.Sprint(primitive.Type),
						fmt.Sprint(primitive.Allocator),
						fmt.Sprint(primitive.HeaderSize),
						fmt.Sprint(primitive.DataSize),
					)
				}
			}
		}
		return printTable(out)
	}

	out := newTable("ASM", "CONTAINER", "TYPE", "FLAGS", "PRIMITIVES", "OFFSET", "COMPRESSED")
	for _, asm := range p.AsmFiles() {
		for _, container := range asm.Containers {
			out.Row(
				asm.Name,
				container.Name,
				fmt.Sprint(container.Type),
				fmt.Sprintf("%#x", container.Flags),
				fmt.Sprint(len(container.Primitives)),
				fmt.Sprint(container.DataOffset),
				fmt.Sprint(container.CompressedSize),
			)
		}
	}
	return printTable(out)
}

func xtblCommand(ctx context.Context, cfg *config.Config) error {
	v, err := openVFS(ctx, cfg)
	if err != nil {
		return err
	}

	tables := xtbl.NewManager(v)
	file, err := tables.Parse(CLI.Xtbl.Archive, CLI.Xtbl.Name)
	if err != nil {
		return err
	}

	if CLI.Xtbl.Entry == "" {
		out := newTable("ENTRY", "CATEGORY")
		for _, entry := range file.Entries {
			out.Row(entry.Text("Name"), xtbl.Category(entry))
		}
		return printTable(out)
	}

	entry := file.Entry(CLI.Xtbl.Entry)
	if entry == nil {
		return fmt.Errorf("%w: %s has no entry %s", vfs.ErrNotFound, file.Name, CLI.Xtbl.Entry)
	}

	out := newTable("FIELD", "TYPE", "VALUE")
	entry.Walk(func(path string, leaf *xtbl.Node) {
		kind := ""
		if field := file.Description.Field(strings.SplitN(path, "/", 2)[0]); field != nil {
			kind = field.Type.String()
		}
		out.Row(path, kind, leaf.Value)
	})
	return printTable(out)
}

func catalogSyncCommand(ctx context.Context, cfg *config.Config) error {
	v, err := openVFS(ctx, cfg)
	if err != nil {
		return err
	}

	c, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer c.Close()

	_, err = c.Sync(ctx, v)
	return err
}

func catalogFindCommand(ctx context.Context, cfg *config.Config) error {
	c, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer c.Close()

	entries, err := c.Find(ctx, CLI.Catalog.Find.Pattern)
	if err != nil {
		return err
	}

	t := newTable("ENTRY", "SIZE", "COMPRESSED")
	for _, entry := range entries {
		compressed := "-"
		if entry.CompressedSize != 0 && entry.CompressedSize != ^uint32(0) {
			compressed = fmt.Sprint(entry.CompressedSize)
		}
		t.Row(entry.Path(), fmt.Sprint(entry.Size), compressed)
	}
	return printTable(t)
}
