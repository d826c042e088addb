package coremock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/couchbaselabs/gocorekv/coremsg"
)

var (
	ErrScriptExhausted = errors.New("no scripted result available for request")
)

// ResultFn produces one scripted facade result.  Results that carry content
// buffers must be produced lazily so that every delivery hands out a fresh
// reference.
type ResultFn func() coremsg.SendResult

// Result wraps a fixed response into a ResultFn.  Use a custom ResultFn
// when the script entry repeats and needs a fresh buffer per delivery.
func Result(rs coremsg.Response) ResultFn {
	return func() coremsg.SendResult {
		return coremsg.SendResult{Response: rs}
	}
}

// ErrorResult wraps a transport error into a ResultFn.
func ErrorResult(err error) ResultFn {
	return func() coremsg.SendResult {
		return coremsg.SendResult{Err: err}
	}
}

// ScriptedFacade is a cluster facade for tests.  Each request type has a
// FIFO script of results; the final entry of a script is sticky and answers
// every further request of that type.  Results are always delivered, even
// when the request context has been cancelled, mirroring the contract that
// in-flight requests are not forcibly aborted.
type ScriptedFacade struct {
	Latency time.Duration

	lock                sync.Mutex
	bucketConfigScript  []ResultFn
	observeScript       []ResultFn
	clusterConfigScript []ResultFn
	requests            []coremsg.Request
}

var _ coremsg.ClusterFacade = (*ScriptedFacade)(nil)

func NewScriptedFacade() *ScriptedFacade {
	return &ScriptedFacade{}
}

// OnGetBucketConfig appends results for GetBucketConfigRequests.
func (f *ScriptedFacade) OnGetBucketConfig(fns ...ResultFn) {
	f.lock.Lock()
	f.bucketConfigScript = append(f.bucketConfigScript, fns...)
	f.lock.Unlock()
}

// OnObserve appends results for ObserveRequests.
func (f *ScriptedFacade) OnObserve(fns ...ResultFn) {
	f.lock.Lock()
	f.observeScript = append(f.observeScript, fns...)
	f.lock.Unlock()
}

// OnGetClusterConfig appends results for GetClusterConfigRequests.
func (f *ScriptedFacade) OnGetClusterConfig(fns ...ResultFn) {
	f.lock.Lock()
	f.clusterConfigScript = append(f.clusterConfigScript, fns...)
	f.lock.Unlock()
}

func popScript(script *[]ResultFn) ResultFn {
	if len(*script) == 0 {
		return nil
	}

	fn := (*script)[0]
	if len(*script) > 1 {
		*script = (*script)[1:]
	}
	return fn
}

func (f *ScriptedFacade) Send(ctx context.Context, req coremsg.Request) <-chan coremsg.SendResult {
	f.lock.Lock()
	f.requests = append(f.requests, req)

	var fn ResultFn
	switch req.(type) {
	case *coremsg.GetBucketConfigRequest:
		fn = popScript(&f.bucketConfigScript)
	case *coremsg.ObserveRequest:
		fn = popScript(&f.observeScript)
	case *coremsg.GetClusterConfigRequest:
		fn = popScript(&f.clusterConfigScript)
	}
	f.lock.Unlock()

	ch := make(chan coremsg.SendResult, 1)
	go func() {
		if f.Latency > 0 {
			time.Sleep(f.Latency)
		}

		if fn == nil {
			ch <- coremsg.SendResult{Err: ErrScriptExhausted}
		} else {
			ch <- fn()
		}
		close(ch)
	}()

	return ch
}

// Requests returns a snapshot of every request sent so far.
func (f *ScriptedFacade) Requests() []coremsg.Request {
	f.lock.Lock()
	defer f.lock.Unlock()

	out := make([]coremsg.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// NumRequests returns the number of requests sent so far.
func (f *ScriptedFacade) NumRequests() int {
	f.lock.Lock()
	defer f.lock.Unlock()

	return len(f.requests)
}

// ObserveRequests returns the observe requests sent so far.
func (f *ScriptedFacade) ObserveRequests() []*coremsg.ObserveRequest {
	f.lock.Lock()
	defer f.lock.Unlock()

	var out []*coremsg.ObserveRequest
	for _, req := range f.requests {
		if oreq, ok := req.(*coremsg.ObserveRequest); ok {
			out = append(out, oreq)
		}
	}
	return out
}
