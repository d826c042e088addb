package observe

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/couchbaselabs/gocorekv/coremsg"
)

var (
	// ErrDocumentConcurrentlyModified signals that the CAS on the active
	// node no longer matches, the document was modified while the caller
	// was waiting for durability.
	ErrDocumentConcurrentlyModified = errors.New("document was concurrently modified")

	// ErrReplicaNotConfigured signals that the durability criterion asks
	// for more replicas than the bucket has configured.
	ErrReplicaNotConfigured = errors.New("not enough replicas configured on the bucket")
)

// ObserveItem is the aggregated durability state observed so far for one
// document.  Items form a commutative monoid under Add with the zero value
// as identity, which makes the order in which replica responses arrive
// irrelevant.
type ObserveItem struct {
	Replicated      int
	Persisted       int
	PersistedMaster bool
}

// ItemFromResponse classifies a single observe response.  The response
// content buffer is released here since the observe payload is not consumed
// any further.
//
// The CAS values always need to match up to make sure we are still
// observing the right document.  The only exclusion from that rule is when
// a real delete is returned, because then the cas value is 0.
func ItemFromResponse(id string, resp *coremsg.ObserveResponse, cas uint64, remove bool,
	persistIdentifier coremsg.ObserveStatus, replicaIdentifier coremsg.ObserveStatus) (ObserveItem, error) {
	if resp.Content != nil && resp.Content.RefCnt() > 0 {
		resp.Content.Release()
	}

	status := resp.ObserveStatus
	validCas := cas == resp.Cas ||
		(remove && resp.Cas == 0 && status == persistIdentifier)

	var item ObserveItem
	if resp.Master {
		if !validCas {
			return item, errors.Wrapf(ErrDocumentConcurrentlyModified,
				"cas changed on the active node for id %q", id)
		}

		if status == persistIdentifier {
			item.Persisted++
			item.PersistedMaster = true
		}
	} else if validCas {
		if status == persistIdentifier {
			// a copy that is persisted on a replica has necessarily been
			// replicated to it as well
			item.Persisted++
			item.Replicated++
		} else if status == replicaIdentifier {
			item.Replicated++
		}
	}

	return item, nil
}

// Add merges the state of two items.
func (i ObserveItem) Add(other ObserveItem) ObserveItem {
	return ObserveItem{
		Replicated:      i.Replicated + other.Replicated,
		Persisted:       i.Persisted + other.Persisted,
		PersistedMaster: i.PersistedMaster || other.PersistedMaster,
	}
}

// Check returns whether the aggregated state satisfies the given criteria.
func (i ObserveItem) Check(persistTo PersistTo, replicateTo ReplicateTo) bool {
	var persistDone bool
	if persistTo == PersistToMaster {
		persistDone = i.PersistedMaster
	} else {
		persistDone = i.Persisted >= persistTo.Value()
	}

	replicateDone := i.Replicated >= replicateTo.Value()

	return persistDone && replicateDone
}

func (i ObserveItem) String() string {
	if i.PersistedMaster {
		return fmt.Sprintf("persisted %d (master), replicated %d", i.Persisted, i.Replicated)
	}
	return fmt.Sprintf("persisted %d, replicated %d", i.Persisted, i.Replicated)
}
