package gocorekv

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/couchbaselabs/gocorekv/configrefresh"
	"github.com/couchbaselabs/gocorekv/coreconfig"
	"github.com/couchbaselabs/gocorekv/coremsg"
	"github.com/couchbaselabs/gocorekv/observe"
	"github.com/couchbaselabs/gocorekv/utils/latestonlychannel"
)

type CoreOptions struct {
	Facade coremsg.ClusterFacade
	Logger *zap.Logger

	// PollInterval overrides the tainted poll cadence of the refresher.
	PollInterval time.Duration
}

// Core wires the carrier refresher and the durability observer to a
// cluster facade.  It acts as the configuration provider: raw config
// bodies proposed by the refresher are parsed, and an accepted config
// atomically replaces the bucket's entry in the current cluster config
// snapshot and untaints the bucket.
type Core struct {
	logger    *zap.Logger
	facade    coremsg.ClusterFacade
	refresher *configrefresh.CarrierRefresher
	observer  *observe.Observer

	lock      sync.Mutex
	config    *coreconfig.ClusterConfig
	passwords map[string]string
	watchers  map[chan *coreconfig.ClusterConfig]struct{}
	closed    bool
}

var _ coreconfig.Provider = (*Core)(nil)

func NewCore(opts *CoreOptions) (*Core, error) {
	if opts.Facade == nil {
		return nil, errors.New("a cluster facade must be provided")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Core{
		logger:    logger,
		facade:    opts.Facade,
		config:    coreconfig.NewClusterConfig(nil),
		passwords: make(map[string]string),
		watchers:  make(map[chan *coreconfig.ClusterConfig]struct{}),
	}

	c.refresher = configrefresh.NewCarrierRefresher(&configrefresh.CarrierRefresherOptions{
		Facade:       opts.Facade,
		Logger:       logger.Named("refresher"),
		PollInterval: opts.PollInterval,
	})
	c.refresher.SetProvider(c)

	c.observer = observe.NewObserver(&observe.ObserverOptions{
		Facade: opts.Facade,
		Logger: logger.Named("observe"),
	})

	return c, nil
}

// OpenBucket registers a bucket with the refresher and records its
// password.  No entry is added to the cluster config snapshot; the bucket
// appears there once a proposed config for it is accepted.
func (c *Core) OpenBucket(name string, password string) {
	c.lock.Lock()
	c.passwords[name] = password
	c.lock.Unlock()

	c.refresher.RegisterBucket(name, password)
}

// CloseBucket deregisters a bucket, stopping any poll for it, and drops it
// from the cluster config snapshot.
func (c *Core) CloseBucket(name string) {
	c.refresher.DeregisterBucket(name)

	c.lock.Lock()
	delete(c.passwords, name)
	c.config = c.config.WithoutBucket(name)
	c.notifyWatchersLocked()
	c.lock.Unlock()
}

// ProposeBucketConfig accepts a raw config body fetched by the refresher.
// Empty or unparseable bodies are rejected and never reach the snapshot.
func (c *Core) ProposeBucketConfig(name string, body string) {
	c.lock.Lock()
	seedHostname := ""
	if current := c.config.BucketConfig(name); current != nil && len(current.Nodes) > 0 {
		seedHostname = current.Nodes[0].Hostname
	}
	password := c.passwords[name]
	c.lock.Unlock()

	bucketConfig, err := coreconfig.ParseTerseConfig(body, seedHostname)
	if err != nil {
		c.logger.Debug("rejecting proposed bucket config",
			zap.String("bucket", name), zap.Error(err))
		return
	}

	// the refresher addressed the bucket by this name; the body agreeing
	// is not something we rely on
	bucketConfig.Name = name
	bucketConfig.Password = password

	c.lock.Lock()
	c.config = c.config.WithBucket(bucketConfig)
	c.notifyWatchersLocked()
	c.lock.Unlock()

	c.logger.Debug("accepted new bucket config", zap.String("bucket", name))
	c.refresher.MarkUntainted(bucketConfig)
}

// ClusterConfig returns the current cluster config snapshot.
func (c *Core) ClusterConfig() *coreconfig.ClusterConfig {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.config
}

// WatchConfig returns a stream of cluster config snapshots, starting with
// the current one.  A slow consumer only ever sees the latest snapshot.
// The stream closes when the context is cancelled or the core is closed.
func (c *Core) WatchConfig(ctx context.Context) <-chan *coreconfig.ClusterConfig {
	inputCh := make(chan *coreconfig.ClusterConfig, 1)

	c.lock.Lock()
	inputCh <- c.config
	c.watchers[inputCh] = struct{}{}
	c.lock.Unlock()

	go func() {
		<-ctx.Done()

		c.lock.Lock()
		if _, ok := c.watchers[inputCh]; ok {
			delete(c.watchers, inputCh)
			close(inputCh)
		}
		c.lock.Unlock()
	}()

	return latestonlychannel.Wrap(inputCh)
}

func (c *Core) notifyWatchersLocked() {
	for watchCh := range c.watchers {
		watchCh <- c.config
	}
}

// RefreshConfig triggers a one-shot refresh of every bucket in the current
// snapshot.
func (c *Core) RefreshConfig() {
	c.refresher.Refresh(c.ClusterConfig())
}

// Refresher exposes the carrier refresher, the owner of taint state.
func (c *Core) Refresher() *configrefresh.CarrierRefresher {
	return c.refresher
}

// Observe verifies durability of a mutation through the wired facade.
func (c *Core) Observe(ctx context.Context, opts observe.ObserveOptions) (bool, error) {
	return c.observer.Observe(ctx, opts)
}

// Close stops all refresh activity and closes all watch streams.
func (c *Core) Close() {
	c.refresher.Close()

	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return
	}
	c.closed = true
	for watchCh := range c.watchers {
		close(watchCh)
	}
	c.watchers = make(map[chan *coreconfig.ClusterConfig]struct{})
	c.lock.Unlock()
}
