package coremsg

import (
	"github.com/couchbase/gocbcore/v10/memd"
	"github.com/google/uuid"

	"github.com/couchbaselabs/gocorekv/corebuf"
	"github.com/couchbaselabs/gocorekv/coreconfig"
)

// Request is a message dispatched through the cluster facade.  Every
// request carries an opaque correlation id so responses can be matched to
// their origin in logs.
type Request interface {
	Opaque() string
	BucketName() string
}

type requestBase struct {
	opaque string
	bucket string
}

func newRequestBase(bucket string) requestBase {
	return requestBase{
		opaque: uuid.NewString(),
		bucket: bucket,
	}
}

func (r requestBase) Opaque() string {
	return r.opaque
}

func (r requestBase) BucketName() string {
	return r.bucket
}

// GetBucketConfigRequest asks one specific node for the current terse
// config of a bucket over the carrier channel.
type GetBucketConfigRequest struct {
	requestBase
	Hostname string
}

func NewGetBucketConfigRequest(bucketName string, hostname string) *GetBucketConfigRequest {
	return &GetBucketConfigRequest{
		requestBase: newRequestBase(bucketName),
		Hostname:    hostname,
	}
}

// ObserveRequest asks the master copy (ReplicaIdx 0) or one replica of a
// document for its current observe state.
type ObserveRequest struct {
	requestBase
	ID         string
	Cas        uint64
	Master     bool
	ReplicaIdx uint16
}

func NewObserveRequest(id string, cas uint64, master bool, replicaIdx uint16, bucketName string) *ObserveRequest {
	return &ObserveRequest{
		requestBase: newRequestBase(bucketName),
		ID:          id,
		Cas:         cas,
		Master:      master,
		ReplicaIdx:  replicaIdx,
	}
}

// GetClusterConfigRequest asks the facade for its current cluster config
// snapshot.
type GetClusterConfigRequest struct {
	requestBase
}

func NewGetClusterConfigRequest() *GetClusterConfigRequest {
	return &GetClusterConfigRequest{
		requestBase: newRequestBase(""),
	}
}

// Response is a message delivered by the cluster facade in answer to a
// Request.
type Response interface {
	response()
}

// GetBucketConfigResponse carries the raw terse config bytes of a bucket.
// Content holds one reference which the receiver must release.
type GetBucketConfigResponse struct {
	Status     ResponseStatus
	KvStatus   memd.StatusCode
	BucketName string
	Content    *corebuf.Buffer
	Origin     string
}

func (r *GetBucketConfigResponse) response() {}

// ObserveResponse carries the observe state of one document copy.  Content
// holds one reference which the receiver must release; the observe payload
// itself is not consumed further by the core.
type ObserveResponse struct {
	Status        ResponseStatus
	ObserveStatus ObserveStatus
	Cas           uint64
	Master        bool
	Content       *corebuf.Buffer
}

func (r *ObserveResponse) response() {}

// GetClusterConfigResponse carries the current cluster config snapshot.
type GetClusterConfigResponse struct {
	Status ResponseStatus
	Config *coreconfig.ClusterConfig
}

func (r *GetClusterConfigResponse) response() {}

// ReleaseContent releases the content buffer of a response if it still
// holds a reference.  Used on paths that drop a response without consuming
// it, the content must not leak a reference.
func ReleaseContent(rs Response) {
	var content *corebuf.Buffer
	switch resp := rs.(type) {
	case *GetBucketConfigResponse:
		content = resp.Content
	case *ObserveResponse:
		content = resp.Content
	}

	if content != nil && content.RefCnt() > 0 {
		content.Release()
	}
}
