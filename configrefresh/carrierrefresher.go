package configrefresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/couchbaselabs/gocorekv/coreconfig"
	"github.com/couchbaselabs/gocorekv/coremetrics"
	"github.com/couchbaselabs/gocorekv/coremsg"
)

const defaultPollInterval = 1 * time.Second

type CarrierRefresherOptions struct {
	Facade coremsg.ClusterFacade
	Logger *zap.Logger

	// PollInterval overrides the cadence of tainted bucket polling.
	PollInterval time.Duration
}

// CarrierRefresher keeps bucket configs fresh by polling the key-value
// nodes of each bucket over the carrier (binary) channel.  Buckets marked
// as tainted are polled periodically until untainted; Refresh performs a
// one-shot pass over a whole cluster config.  Fetched configs are handed to
// the installed provider, failures are swallowed so the next tick can try
// again.
type CarrierRefresher struct {
	facade       coremsg.ClusterFacade
	logger       *zap.Logger
	pollInterval time.Duration

	closeCtx    context.Context
	closeCancel context.CancelFunc

	lock          sync.Mutex
	provider      coreconfig.Provider
	registrations map[string]string
	polls         map[string]*taintedPoll
}

// taintedPoll tracks the single polling task a tainted bucket is allowed to
// have.  stopCh only stops the scheduling of further ticks; a tick that is
// already underway runs to completion.
type taintedPoll struct {
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewCarrierRefresher(opts *CarrierRefresherOptions) *CarrierRefresher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = defaultPollInterval
	}

	closeCtx, closeCancel := context.WithCancel(context.Background())

	return &CarrierRefresher{
		facade:        opts.Facade,
		logger:        logger,
		pollInterval:  pollInterval,
		closeCtx:      closeCtx,
		closeCancel:   closeCancel,
		registrations: make(map[string]string),
		polls:         make(map[string]*taintedPoll),
	}
}

// SetProvider installs the sink that accepts proposed configs.  It must be
// installed before any refresh activity starts.
func (r *CarrierRefresher) SetProvider(provider coreconfig.Provider) {
	r.lock.Lock()
	r.provider = provider
	r.lock.Unlock()
}

// RegisterBucket records a bucket for refresh operations.  Registering the
// same bucket again only updates the stored password.
func (r *CarrierRefresher) RegisterBucket(name string, password string) {
	r.lock.Lock()
	r.registrations[name] = password
	r.lock.Unlock()
}

// DeregisterBucket removes the bucket registration and stops any active
// poll for it.
func (r *CarrierRefresher) DeregisterBucket(name string) {
	r.lock.Lock()
	delete(r.registrations, name)
	poll := r.polls[name]
	delete(r.polls, name)
	r.lock.Unlock()

	if poll != nil {
		close(poll.stopCh)
	}
}

// Refresh performs a one-shot refresh attempt for every bucket in the
// given cluster config snapshot.  Buckets proceed independently; failures
// are swallowed.
func (r *CarrierRefresher) Refresh(config *coreconfig.ClusterConfig) {
	for _, bucketConfig := range config.BucketConfigs() {
		go r.refreshBucket(r.closeCtx, bucketConfig)
	}
}

// MarkTainted starts a periodic poll for the bucket.  A bucket that is
// already being polled ignores further calls until it is untainted, which
// guarantees at most one active poll per bucket.
func (r *CarrierRefresher) MarkTainted(config *coreconfig.BucketConfig) {
	r.lock.Lock()
	if _, alreadyPolling := r.polls[config.Name]; alreadyPolling {
		r.lock.Unlock()
		return
	}

	poll := &taintedPoll{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	r.polls[config.Name] = poll
	r.lock.Unlock()

	r.logger.Debug("starting tainted poll", zap.String("bucket", config.Name))
	go r.pollLoop(config, poll)
}

// MarkUntainted stops the periodic poll for the bucket.  A tick that is
// already underway completes, no further ticks are scheduled.
func (r *CarrierRefresher) MarkUntainted(config *coreconfig.BucketConfig) {
	r.lock.Lock()
	poll := r.polls[config.Name]
	delete(r.polls, config.Name)
	r.lock.Unlock()

	if poll == nil {
		return
	}

	r.logger.Debug("stopping tainted poll", zap.String("bucket", config.Name))
	close(poll.stopCh)
}

// Close stops all polling activity.
func (r *CarrierRefresher) Close() {
	r.lock.Lock()
	polls := r.polls
	r.polls = make(map[string]*taintedPoll)
	r.lock.Unlock()

	for _, poll := range polls {
		close(poll.stopCh)
	}
	r.closeCancel()

	for _, poll := range polls {
		<-poll.doneCh
	}
}

func (r *CarrierRefresher) pollLoop(config *coreconfig.BucketConfig, poll *taintedPoll) {
	defer close(poll.doneCh)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-poll.stopCh:
			return
		case <-r.closeCtx.Done():
			return
		}

		// ticks never overlap, a slow attempt simply swallows the ticks
		// it missed
		r.refreshBucket(r.closeCtx, config)
	}
}

// refreshBucket walks the key-value nodes of the bucket in order until one
// of them yields a usable config, which is proposed to the provider.  When
// every node fails the attempt ends silently; the next tick retries.
func (r *CarrierRefresher) refreshBucket(ctx context.Context, config *coreconfig.BucketConfig) {
	selector := coreconfig.NewNodeSelector(config)
	for {
		node, ok := selector.Next()
		if !ok {
			r.logger.Debug("exhausted all nodes without a config",
				zap.String("bucket", config.Name))
			return
		}

		body, ok := r.fetchFromNode(ctx, config.Name, node)
		if !ok {
			continue
		}

		r.lock.Lock()
		provider := r.provider
		r.lock.Unlock()

		if provider == nil {
			r.logger.Warn("no provider installed, dropping config",
				zap.String("bucket", config.Name))
			return
		}

		coremetrics.Get().ConfigProposals.Add(ctx, 1)
		provider.ProposeBucketConfig(config.Name, body)
		return
	}
}

// fetchFromNode asks a single node for the bucket config.  It returns the
// decoded body only for a successful response with a non-empty payload.
// The response content buffer is released on every path.
func (r *CarrierRefresher) fetchFromNode(ctx context.Context, bucketName string, node coreconfig.NodeInfo) (string, bool) {
	req := coremsg.NewGetBucketConfigRequest(bucketName, node.Hostname)
	resultCh := r.facade.Send(ctx, req)

	var result coremsg.SendResult
	select {
	case res, ok := <-resultCh:
		if !ok {
			r.logger.Debug("facade closed the stream without a response",
				zap.String("bucket", bucketName),
				zap.String("hostname", node.Hostname))
			return "", false
		}
		result = res
	case <-ctx.Done():
		// the in-flight request is not aborted, but its result is dropped;
		// drain it in the background so its buffer is still released
		go drainResults(resultCh)
		return "", false
	}

	if result.Err != nil {
		r.logger.Debug("error while fetching bucket config",
			zap.String("bucket", bucketName),
			zap.String("hostname", node.Hostname),
			zap.Error(result.Err))
		return "", false
	}

	resp, ok := result.Response.(*coremsg.GetBucketConfigResponse)
	if !ok {
		coremsg.ReleaseContent(result.Response)
		r.logger.Debug("unexpected response type for bucket config request",
			zap.String("bucket", bucketName))
		return "", false
	}

	if resp.Content == nil {
		r.logger.Debug("bucket config response without content",
			zap.String("bucket", bucketName),
			zap.String("hostname", node.Hostname))
		return "", false
	}

	body := resp.Content.String()
	resp.Content.Release()

	if !resp.Status.IsSuccess() || len(body) == 0 {
		r.logger.Debug("discarding unusable bucket config response",
			zap.String("bucket", bucketName),
			zap.String("hostname", node.Hostname),
			zap.Stringer("status", resp.Status))
		return "", false
	}

	return body, true
}

func drainResults(ch <-chan coremsg.SendResult) {
	for res := range ch {
		if res.Response != nil {
			coremsg.ReleaseContent(res.Response)
		}
	}
}
