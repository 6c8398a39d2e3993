// Package catalog records the contents of an indexed data folder in SQLite
// so it can be queried without opening the archives again.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cfoust/forge/pkg/packfile"
	"github.com/cfoust/forge/pkg/vfs"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Entity struct {
	ID uint `gorm:"primaryKey"`
}

type Archive struct {
	Entity

	Name       string `gorm:"unique;not null"`
	Path       string
	Size       int64
	ModTime    time.Time
	Compressed bool
	Condensed  bool
	NumEntries int

	Entries []Entry `gorm:"constraint:OnDelete:CASCADE"`
}

type Entry struct {
	Entity

	ArchiveID uint `gorm:"not null;index"`
	// The .str2_pc container holding the entry, if any
	Container      string
	Name           string `gorm:"not null;index"`
	Extension      string `gorm:"size:32;index"`
	Size           uint32
	CompressedSize uint32

	Archive *Archive
}

// Path is the entry's location in the same form as a vfs.FileHandle.
func (e *Entry) Path() string {
	archive := ""
	if e.Archive != nil {
		archive = e.Archive.Name
	}
	if e.Container != "" {
		return fmt.Sprintf("%s/%s/%s", archive, e.Container, e.Name)
	}
	return fmt.Sprintf("%s/%s", archive, e.Name)
}

type Catalog struct {
	db *gorm.DB
}

func Open(path string) (*Catalog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&Archive{}, &Entry{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate catalog: %w", err)
	}

	return &Catalog{db: db}, nil
}

func (c *Catalog) Close() error {
	db, err := c.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

type SyncResult struct {
	Updated  int
	Skipped  int
	Removed  int
	Failures int
}

// Sync brings the catalog in line with the archives in v. Archives whose
// size and modification time have not changed since the last sync are
// skipped.
func (c *Catalog) Sync(ctx context.Context, v *vfs.PackfileVFS) (SyncResult, error) {
	var result SyncResult

	err := v.WaitReady(ctx)
	if err != nil {
		return result, err
	}

	db := c.db.WithContext(ctx)

	present := make(map[string]struct{})
	for _, p := range v.Packfiles() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		present[p.Name()] = struct{}{}

		archive := Archive{
			Name:       p.Name(),
			Path:       p.Path(),
			Compressed: p.Compressed(),
			Condensed:  p.Condensed(),
			NumEntries: p.NumEntries(),
		}
		if p.Path() != "" {
			info, err := os.Stat(p.Path())
			if err == nil {
				archive.Size = info.Size()
				archive.ModTime = info.ModTime().UTC()
			}
		}

		var existing Archive
		err := db.Where(Archive{Name: p.Name()}).First(&existing).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return result, err
		}

		if err == nil &&
			!archive.ModTime.IsZero() &&
			existing.Size == archive.Size &&
			existing.ModTime.Equal(archive.ModTime) {
			result.Skipped++
			continue
		}

		entries, failures := c.entries(v, p)
		result.Failures += failures

		err = db.Transaction(func(tx *gorm.DB) error {
			if existing.ID != 0 {
				err := tx.Where(Entry{ArchiveID: existing.ID}).Delete(&Entry{}).Error
				if err != nil {
					return err
				}
				archive.ID = existing.ID
			}

			err := tx.Save(&archive).Error
			if err != nil {
				return err
			}

			for i := range entries {
				entries[i].ArchiveID = archive.ID
			}
			if len(entries) == 0 {
				return nil
			}
			return tx.CreateInBatches(entries, 500).Error
		})
		if err != nil {
			return result, fmt.Errorf("failed to catalog %s: %w", p.Name(), err)
		}

		result.Updated++
	}

	var archives []Archive
	err = db.Find(&archives).Error
	if err != nil {
		return result, err
	}

	for _, archive := range archives {
		if _, ok := present[archive.Name]; ok {
			continue
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			err := tx.Where(Entry{ArchiveID: archive.ID}).Delete(&Entry{}).Error
			if err != nil {
				return err
			}
			return tx.Delete(&archive).Error
		})
		if err != nil {
			return result, err
		}
		result.Removed++
	}

	log.Info().
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("removed", result.Removed).
		Msg("synced catalog")

	return result, nil
}

// entries lists everything in p including the contents of its stream
// containers. Containers that cannot be opened are counted and skipped.
func (c *Catalog) entries(v *vfs.PackfileVFS, p *packfile.Packfile) ([]Entry, int) {
	handles, err := v.GetFilesIn(p.Name(), "*", true, false)
	if err != nil {
		return nil, 1
	}

	failures := 0
	containers := map[string]*packfile.Packfile{"": p}
	var entries []Entry
	for _, handle := range handles {
		container, ok := containers[handle.SubArchive]
		if !ok {
			container, err = handle.Container()
			if err != nil {
				log.Warn().Err(err).Str("container", handle.SubArchive).Msg("failed to catalog container")
				failures++
			}
			containers[handle.SubArchive] = container
		}
		if container == nil {
			continue
		}

		info, ok := container.Entry(handle.Entry)
		if !ok {
			continue
		}

		entries = append(entries, Entry{
			Container:      handle.SubArchive,
			Name:           handle.Entry,
			Extension:      strings.ToLower(filepath.Ext(handle.Entry)),
			Size:           info.DataSize,
			CompressedSize: info.CompressedDataSize,
		})
	}

	return entries, failures
}

// likePattern turns a glob into a LIKE pattern.
func likePattern(pattern string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`%`, `\%`,
		`_`, `\_`,
		`*`, `%`,
		`?`, `_`,
	)
	return replacer.Replace(pattern)
}

// Find returns the entries whose names match the glob pattern, ignoring
// case.
func (c *Catalog) Find(ctx context.Context, pattern string) ([]Entry, error) {
	var entries []Entry
	err := c.db.WithContext(ctx).
		Preload("Archive").
		Where(`name LIKE ? ESCAPE '\'`, likePattern(pattern)).
		Order("archive_id, container, name").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Catalog) Archives(ctx context.Context) ([]Archive, error) {
	var archives []Archive
	err := c.db.WithContext(ctx).Order("name").Find(&archives).Error
	if err != nil {
		return nil, err
	}
	return archives, nil
}

// Extensions counts catalogued entries by extension.
func (c *Catalog) Extensions(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Extension string
		Count     int
	}
	err := c.db.WithContext(ctx).
		Model(&Entry{}).
		Select("extension, count(*) as count").
		Group("extension").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Extension] = row.Count
	}
	return counts, nil
}
