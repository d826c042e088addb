package observe

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/couchbaselabs/gocorekv/coredelay"
	"github.com/couchbaselabs/gocorekv/coremetrics"
	"github.com/couchbaselabs/gocorekv/coremsg"
	"github.com/couchbaselabs/gocorekv/coreretry"
	"github.com/couchbaselabs/gocorekv/utils/channelmerge"
)

type ObserverOptions struct {
	Facade coremsg.ClusterFacade
	Logger *zap.Logger
}

// Observer verifies that a mutation or deletion has reached the requested
// number of replicas and/or on-disk persistence.  It polls the active node
// and, when the criterion involves replicas, every replica, aggregates the
// responses and repeats with a delay until the criterion is met.
type Observer struct {
	facade coremsg.ClusterFacade
	logger *zap.Logger
}

func NewObserver(opts *ObserverOptions) *Observer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Observer{
		facade: opts.Facade,
		logger: logger,
	}
}

type ObserveOptions struct {
	BucketName string
	ID         string
	Cas        uint64

	// Remove flips the sentinel statuses so that a deletion is verified
	// instead of a mutation.
	Remove bool

	PersistTo   PersistTo
	ReplicateTo ReplicateTo

	// Delay is the inter-attempt backoff schedule; nil selects a default
	// exponential schedule.
	Delay coredelay.Delay

	// RetryStrategy decides whether per-replica failures are swallowed;
	// nil selects best effort.
	RetryStrategy coreretry.RetryStrategy
}

// Observe polls until the durability criterion is satisfied and returns
// true, or fails with ErrDocumentConcurrentlyModified when the CAS diverges
// on the active node, with ErrReplicaNotConfigured when the criterion
// exceeds the bucket's replica count, or with the context's error when the
// caller gives up.
func (o *Observer) Observe(ctx context.Context, opts ObserveOptions) (bool, error) {
	delay := opts.Delay
	if delay == nil {
		delay = coredelay.Exponential(10*time.Millisecond, 100*time.Millisecond)
	}

	retryStrategy := opts.RetryStrategy
	if retryStrategy == nil {
		retryStrategy = coreretry.BestEffort
	}

	var persistIdentifier, replicaIdentifier coremsg.ObserveStatus
	if opts.Remove {
		persistIdentifier = coremsg.ObserveStatusNotFoundPersisted
		replicaIdentifier = coremsg.ObserveStatusNotFoundNotPersisted
	} else {
		persistIdentifier = coremsg.ObserveStatusFoundPersisted
		replicaIdentifier = coremsg.ObserveStatusFoundNotPersisted
	}

	for attempt := uint32(1); ; attempt++ {
		satisfied, err := o.poll(ctx, opts, retryStrategy, persistIdentifier, replicaIdentifier)
		if err != nil {
			return false, err
		}
		if satisfied {
			return true, nil
		}

		select {
		case <-time.After(delay.Calculate(attempt)):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// poll runs a single observe round: fan out to the active node (and the
// replicas when the criterion touches them), fold the responses into the
// aggregate and stop at the first aggregate that satisfies the criterion.
func (o *Observer) poll(ctx context.Context, opts ObserveOptions, retryStrategy coreretry.RetryStrategy,
	persistIdentifier coremsg.ObserveStatus, replicaIdentifier coremsg.ObserveStatus) (bool, error) {
	coremetrics.Get().ObservePolls.Add(ctx, 1)

	numReplicas, err := o.fetchNumReplicas(ctx, opts.BucketName)
	if err != nil {
		return false, err
	}

	if opts.ReplicateTo.TouchesReplica() && opts.ReplicateTo.Value() > numReplicas {
		return false, errors.Wrapf(ErrReplicaNotConfigured,
			"replicateTo %s exceeds %d configured replicas", opts.ReplicateTo, numReplicas)
	}
	if opts.PersistTo.TouchesReplica() && opts.PersistTo.Value()-1 > numReplicas {
		return false, errors.Wrapf(ErrReplicaNotConfigured,
			"persistTo %s exceeds %d configured replicas", opts.PersistTo, numReplicas)
	}

	touchesReplica := opts.PersistTo.TouchesReplica() || opts.ReplicateTo.TouchesReplica()

	chans := make([]<-chan coremsg.SendResult, 0, numReplicas+1)
	chans = append(chans,
		o.facade.Send(ctx, coremsg.NewObserveRequest(opts.ID, opts.Cas, true, 0, opts.BucketName)))
	if touchesReplica {
		for replicaIdx := uint16(1); replicaIdx <= uint16(numReplicas); replicaIdx++ {
			chans = append(chans,
				o.facade.Send(ctx, coremsg.NewObserveRequest(opts.ID, opts.Cas, false, replicaIdx, opts.BucketName)))
		}
	}

	results := channelmerge.Merge(chans...)
	swallowErrors := retryStrategy.ShouldRetryObserve()

	// the scan starts from the identity item; a criterion that is already
	// satisfied by it (persistTo none, replicateTo none) terminates before
	// any response is inspected
	agg := ObserveItem{}
	if agg.Check(opts.PersistTo, opts.ReplicateTo) {
		go drainResults(results)
		return true, nil
	}

	for res := range results {
		if res.Err != nil {
			if swallowErrors {
				// this copy simply does not contribute this round
				o.logger.Debug("swallowing observe failure",
					zap.String("id", opts.ID), zap.Error(res.Err))
				continue
			}
			go drainResults(results)
			return false, res.Err
		}

		resp, ok := res.Response.(*coremsg.ObserveResponse)
		if !ok {
			coremsg.ReleaseContent(res.Response)
			o.logger.Debug("unexpected response type for observe request",
				zap.String("id", opts.ID))
			continue
		}

		item, err := ItemFromResponse(opts.ID, resp, opts.Cas, opts.Remove,
			persistIdentifier, replicaIdentifier)
		if err != nil {
			go drainResults(results)
			return false, err
		}

		agg = agg.Add(item)
		o.logger.Debug("observe state aggregated",
			zap.String("id", opts.ID), zap.Stringer("state", agg))

		if agg.Check(opts.PersistTo, opts.ReplicateTo) {
			go drainResults(results)
			return true, nil
		}
	}

	return false, nil
}

func (o *Observer) fetchNumReplicas(ctx context.Context, bucketName string) (int, error) {
	resultCh := o.facade.Send(ctx, coremsg.NewGetClusterConfigRequest())

	var result coremsg.SendResult
	select {
	case res, ok := <-resultCh:
		if !ok {
			return 0, errors.New("facade closed the cluster config stream")
		}
		result = res
	case <-ctx.Done():
		go drainResults(resultCh)
		return 0, ctx.Err()
	}

	if result.Err != nil {
		return 0, errors.Wrap(result.Err, "failed to fetch cluster config")
	}

	resp, ok := result.Response.(*coremsg.GetClusterConfigResponse)
	if !ok {
		coremsg.ReleaseContent(result.Response)
		return 0, errors.New("unexpected response type for cluster config request")
	}

	bucketConfig := resp.Config.BucketConfig(bucketName)
	if bucketConfig == nil {
		return 0, errors.Errorf("no config for bucket %q", bucketName)
	}

	return bucketConfig.NumReplicas, nil
}

// drainResults consumes the rest of a response stream whose results are no
// longer needed, releasing any content buffers so they do not leak.
func drainResults(ch <-chan coremsg.SendResult) {
	for res := range ch {
		if res.Response != nil {
			coremsg.ReleaseContent(res.Response)
		}
	}
}
