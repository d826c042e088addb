package coremsg

import (
	"context"
)

// SendResult is one emission of a facade response stream, either a response
// or a transport error, never both.
type SendResult struct {
	Response Response
	Err      error
}

// ClusterFacade dispatches requests to the cluster and yields the responses
// as a lazy stream.  For the requests used by the client core the stream
// yields exactly one result and is then closed.  Implementations deliver
// results even after the context is cancelled so that content buffers can
// always be drained and released by the caller.
type ClusterFacade interface {
	Send(ctx context.Context, req Request) <-chan SendResult
}
