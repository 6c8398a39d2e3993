package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cfoust/forge/pkg/assets"
	"github.com/cfoust/forge/pkg/classes"
	"github.com/cfoust/forge/pkg/config"
	"github.com/cfoust/forge/pkg/territory"
	"github.com/cfoust/forge/pkg/vfs"

	"github.com/go-redis/redis/v9"
	"github.com/rs/zerolog/log"
)

func indexStore(cfg *config.Config) (assets.Store, error) {
	if CLI.NoCache || cfg.Cache.Disabled {
		return nil, nil
	}

	if cfg.Cache.Redis.Address != "" {
		ttl, err := cfg.Cache.Redis.Expiration()
		if err != nil {
			return nil, err
		}

		client := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.Redis.Address,
		})
		return assets.NewRedisCache(client, ttl), nil
	}

	cacheDir := cfg.Cache.Directory
	if cacheDir == "" {
		userCache, err := os.UserCacheDir()
		if err != nil {
			log.Warn().Err(err).Msg("no cache directory, packfile indexes will not be cached")
			return nil, nil
		}
		cacheDir = filepath.Join(userCache, "forge")
	}

	err := os.MkdirAll(cacheDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to make cache dir %s: %w", cacheDir, err)
	}

	return assets.FSStore(cacheDir), nil
}

// openVFS indexes the data folder and waits until it is ready.
func openVFS(ctx context.Context, cfg *config.Config) (*vfs.PackfileVFS, error) {
	if cfg.DataFolder == "" {
		return nil, fmt.Errorf("no data folder, set dataFolder in a config file or pass --data")
	}

	options := []vfs.Option{
		vfs.WithLogger(log.Logger),
		vfs.WithWorkers(cfg.Workers.Archives),
	}

	store, err := indexStore(cfg)
	if err != nil {
		return nil, err
	}
	if store != nil {
		options = append(options, vfs.WithStore(store))
	}

	v := vfs.New(options...)
	err = v.Scan(ctx, cfg.DataFolder)
	if err != nil {
		return nil, err
	}

	err = v.WaitReady(ctx)
	if err != nil {
		return nil, err
	}

	for name, err := range v.Failures() {
		log.Warn().Err(err).Str("packfile", name).Msg("skipped unreadable packfile")
	}

	return v, nil
}

// resolveTerritory finds a configured territory by name. Anything else is
// taken to be the name of a zonescript archive.
func resolveTerritory(cfg *config.Config, name string) config.TerritoryConfig {
	if territory, ok := cfg.Territory(name); ok {
		if territory.ShortName == "" {
			territory.ShortName = territory.Name
		}
		return territory
	}

	shortName := strings.TrimSuffix(name, vfs.PackfileExtension)
	shortName = strings.TrimPrefix(shortName, "zonescript_")
	return config.TerritoryConfig{
		Name:      shortName,
		File:      name,
		ShortName: shortName,
	}
}

func loadTerritory(ctx context.Context, cfg *config.Config, name string) (*territory.Territory, error) {
	v, err := openVFS(ctx, cfg)
	if err != nil {
		return nil, err
	}

	target := resolveTerritory(cfg, name)
	t := territory.New(v, target.File, target.ShortName, classes.NewRegistry())
	err = t.LoadZoneData(ctx)
	if err != nil {
		return nil, err
	}

	return t, nil
}
