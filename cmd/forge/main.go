package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/cfoust/forge/pkg/config"
	"github.com/cfoust/forge/pkg/version"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var CLI struct {
	Version kong.VersionFlag `help:"Print version information and exit." short:"v"`
	Debug   bool             `help:"Whether to enable debug logging."`
	Config  []string         `help:"Configuration files, applied in order on top of the defaults." type:"existingfile" short:"c"`
	Data    string           `help:"Folder containing the game's .vpp_pc archives. Overrides dataFolder." type:"existingdir" short:"d"`
	NoCache bool             `help:"Do not read or write the packfile index cache."`

	Packfiles struct {
	} `cmd:"" help:"List the archives in the data folder."`

	Ls struct {
		Pattern   string `arg:"" help:"Glob matched against entry names, ignoring case."`
		Archive   string `help:"Only search this archive." short:"a"`
		Recursive bool   `help:"Search inside .str2_pc containers." short:"r" default:"true" negatable:""`
	} `cmd:"" help:"List archive entries matching a pattern."`

	Extract struct {
		Pattern string `arg:"" help:"Glob matched against entry names, ignoring case."`
		Out     string `help:"Output folder." short:"o" default:"."`
		Archive string `help:"Only extract from this archive." short:"a"`
	} `cmd:"" help:"Copy matching entries out of their archives."`

	Zones struct {
		Territory string `arg:"" help:"Configured territory name or zonescript archive."`
	} `cmd:"" help:"List the zones of a territory."`

	Classes struct {
		Territory string `arg:"" help:"Configured territory name or zonescript archive."`
		Visible   bool   `help:"Only count objects in visible zones."`
	} `cmd:"" help:"Count the objects of each class in a territory."`

	Terrain struct {
		Territory string `arg:"" help:"Configured territory name or zonescript archive."`
	} `cmd:"" help:"Load and decode every terrain tile of a territory."`

	Texture struct {
		Name  string `arg:"" help:"Name of the .cvbm_pc texture container."`
		Out   string `help:"PNG file to write." short:"o" required:""`
		Index int    `help:"Texture in the container to decode." default:"0"`
		Size  int    `help:"Scale the longest side to this many pixels. 0 keeps the original size." default:"0"`
	} `cmd:"" help:"Write a preview of a texture as PNG."`

	Asm struct {
		Archive    string `arg:"" help:"Archive whose .asm_pc manifests to list."`
		Primitives bool   `help:"List the primitives of every container." short:"p"`
	} `cmd:"" help:"List the stream containers described by an archive's .asm_pc files."`

	Xtbl struct {
		Archive string `arg:"" help:"Archive holding the table."`
		Name    string `arg:"" help:"Name of the .xtbl file."`
		Entry   string `help:"Print the fields of this entry." short:"e"`
	} `cmd:"" help:"Read an .xtbl data table."`

	Catalog struct {
		Sync struct {
		} `cmd:"" help:"Record the contents of the data folder in the catalog."`

		Find struct {
			Pattern string `arg:"" help:"Glob matched against entry names, ignoring case."`
		} `cmd:"" help:"Search the catalog."`
	} `cmd:"" help:"Query an offline catalog of the data folder."`

	Config_ struct {
	} `cmd:"" name:"config" help:"Write the effective configuration to standard output."`
}

func writeError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func main() {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(consoleWriter)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	kongCtx := kong.Parse(&CLI,
		kong.Name("forge"),
		kong.Description("inspect Red Faction: Guerrilla data folders"),
		kong.UsageOnError(),
		kong.Vars{
			"version": fmt.Sprintf(
				"forge %s (commit %s, built %s)",
				version.Version,
				version.GitCommit,
				version.BuildTime,
			),
		},
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	if CLI.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Warn().Msg("debug logging enabled")
	}

	cfg, err := config.Process(CLI.Config)
	if err != nil {
		writeError(fmt.Errorf("failed to load configuration: %w", err))
	}
	if CLI.Data != "" {
		cfg.DataFolder = CLI.Data
	}

	if kongCtx.Command() == "config" {
		data, err := cfg.YAML()
		if err != nil {
			writeError(err)
		}
		os.Stdout.Write(data)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch kongCtx.Command() {
	case "packfiles":
		err = packfilesCommand(ctx, cfg)
	case "ls <pattern>":
		err = lsCommand(ctx, cfg)
	case "extract <pattern>":
		err = extractCommand(ctx, cfg)
	case "zones <territory>":
		err = zonesCommand(ctx, cfg)
	case "classes <territory>":
		err = classesCommand(ctx, cfg)
	case "terrain <territory>":
		err = terrainCommand(ctx, cfg)
	case "texture <name>":
		err = textureCommand(ctx, cfg)
	case "asm <archive>":
		err = asmCommand(ctx, cfg)
	case "xtbl <archive> <name>":
		err = xtblCommand(ctx, cfg)
	case "catalog sync":
		err = catalogSyncCommand(ctx, cfg)
	case "catalog find <pattern>":
		err = catalogFindCommand(ctx, cfg)
	default:
		err = fmt.Errorf("unknown command %s", kongCtx.Command())
	}

	if err != nil {
		writeError(err)
	}
}
