// Package document loads a territory in the background: its zones first,
// then every terrain tile the zones reference, published one at a time so
// a consumer can pick them up while loading continues.
package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/cfoust/forge/pkg/classes"
	"github.com/cfoust/forge/pkg/terrain"
	"github.com/cfoust/forge/pkg/territory"
	"github.com/cfoust/forge/pkg/utils"
	"github.com/cfoust/forge/pkg/vfs"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

const DefaultTerrainWorkers = 8

var ErrInvalidOptions = errors.New("document: invalid options")

type Stage uint8

const (
	StageZones Stage = iota
	StageTerrain
	StageDone
	StageFailed
	StageClosed
)

func (s Stage) String() string {
	switch s {
	case StageZones:
		return "zones"
	case StageTerrain:
		return "terrain"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	case StageClosed:
		return "closed"
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

type Status struct {
	Stage   Stage
	Message string

	TilesTotal  int
	TilesLoaded int
	TilesFailed int
}

type Options struct {
	VFS                *vfs.PackfileVFS
	Registry           *classes.Registry
	TerritoryFilename  string
	TerritoryShortname string
	MaxTerrainWorkers  int
	// Defaults to the global logger.
	Logger *zerolog.Logger
}

type Document struct {
	title     string
	log       zerolog.Logger
	vfs       *vfs.PackfileVFS
	territory *territory.Territory
	workers   int

	session *utils.Session
	status  *utils.Topic[Status]

	mutex            deadlock.Mutex
	instances        []*terrain.Instance
	newInstanceAdded bool
	workerDone       bool
	closed           bool
	failed           bool
	err              error
	lastStatus       Status
}

// Open starts loading a territory and returns immediately.
func Open(ctx context.Context, options Options) (*Document, error) {
	if options.VFS == nil {
		return nil, fmt.Errorf("%w: no vfs", ErrInvalidOptions)
	}
	if options.TerritoryFilename == "" {
		return nil, fmt.Errorf("%w: no territory filename", ErrInvalidOptions)
	}

	workers := options.MaxTerrainWorkers
	if workers <= 0 {
		workers = DefaultTerrainWorkers
	}

	logger := log.Logger
	if options.Logger != nil {
		logger = *options.Logger
	}

	title := options.TerritoryShortname
	if title == "" {
		title = options.TerritoryFilename
	}

	logger = logger.With().Str("territory", title).Logger()

	d := &Document{
		title: title,
		log:   logger,
		vfs:   options.VFS,
		territory: territory.New(
			options.VFS,
			options.TerritoryFilename,
			options.TerritoryShortname,
			options.Registry,
			territory.WithLogger(logger),
		),
		workers: workers,
		session: utils.NewSession(ctx),
		status:  utils.NewTopic[Status](),
	}

	d.session.Go(d.work)

	return d, nil
}

func (d *Document) Title() string { return d.title }

// Territory is safe to read once WorkerDone reports true.
func (d *Document) Territory() *territory.Territory { return d.territory }

// Close stops the worker, waits for it and every tile job to return, then
// releases the loaded data. Close is idempotent.
func (d *Document) Close() {
	d.session.Close()

	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		return
	}
	d.closed = true
	d.instances = nil
	d.newInstanceAdded = false
	d.mutex.Unlock()

	d.territory.Reset()
	d.setStatus(Status{Stage: StageClosed, Message: "Closed " + d.title})
	d.status.Close()
	d.log.Debug().Msg("document closed")
}

// Subscribe returns a subscription to status changes. Statuses are dropped
// for subscribers that fall behind; LastStatus always has the latest.
func (d *Document) Subscribe() *utils.Subscriber[Status] {
	return d.status.Subscribe()
}

func (d *Document) LastStatus() Status {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.lastStatus
}

func (d *Document) setStatus(status Status) {
	d.mutex.Lock()
	d.lastStatus = status
	d.mutex.Unlock()

	d.status.Publish(status)
}

// updateStatus changes the last status under the lock and publishes it.
func (d *Document) updateStatus(fn func(*Status)) {
	d.mutex.Lock()
	fn(&d.lastStatus)
	status := d.lastStatus
	d.mutex.Unlock()

	d.status.Publish(status)
}

func (d *Document) fail(err error) {
	d.mutex.Lock()
	d.failed = true
	d.err = err
	d.mutex.Unlock()

	d.log.Error().Err(err).Msg("failed to load territory")
	d.setStatus(Status{Stage: StageFailed, Message: "Failed to load " + d.title})
}

func (d *Document) Failed() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.failed
}

func (d *Document) Err() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.err
}

// WorkerDone reports whether loading has finished, failed or been
// cancelled.
func (d *Document) WorkerDone() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.workerDone
}

// NewInstanceAdded reports whether instances were published since the last
// Drain.
func (d *Document) NewInstanceAdded() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.newInstanceAdded
}

// Instances returns a snapshot of the published instances.
func (d *Document) Instances() []*terrain.Instance {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	instances := make([]*terrain.Instance, len(d.instances))
	copy(instances, d.instances)
	return instances
}

// Drain calls fn with every instance that has not been drained yet and
// marks it initialized. fn runs with the document lock held and must not
// call back into the document.
func (d *Document) Drain(fn func(*terrain.Instance)) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	count := 0
	for _, instance := range d.instances {
		if instance.RenderDataInitialized {
			continue
		}

		fn(instance)
		instance.RenderDataInitialized = true
		count++
	}
	d.newInstanceAdded = false

	return count
}

// publish adds a finished tile unless the document has been closed.
func (d *Document) publish(ctx context.Context, instance *terrain.Instance) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed || ctx.Err() != nil {
		return false
	}

	d.instances = append(d.instances, instance)
	d.newInstanceAdded = true
	return true
}
