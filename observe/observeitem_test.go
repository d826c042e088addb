package observe

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchbaselabs/gocorekv/corebuf"
	"github.com/couchbaselabs/gocorekv/coremsg"
)

func TestItemMonoidLaws(t *testing.T) {
	empty := ObserveItem{}
	x := ObserveItem{Replicated: 1, Persisted: 0, PersistedMaster: false}
	y := ObserveItem{Replicated: 0, Persisted: 1, PersistedMaster: true}
	z := ObserveItem{Replicated: 2, Persisted: 2, PersistedMaster: false}

	// identity
	assert.Equal(t, x, empty.Add(x))
	assert.Equal(t, x, x.Add(empty))

	// associativity
	assert.Equal(t, x.Add(y).Add(z), x.Add(y.Add(z)))

	// commutativity
	assert.Equal(t, x.Add(y), y.Add(x))
	assert.Equal(t, y.Add(z), z.Add(y))
}

func TestEmptyItemSatisfiesEmptyCriteria(t *testing.T) {
	// with no criteria at all, the scan's starting state already passes
	assert.True(t, ObserveItem{}.Check(PersistToNone, ReplicateToNone))
	assert.False(t, ObserveItem{}.Check(PersistToOne, ReplicateToNone))
	assert.False(t, ObserveItem{}.Check(PersistToNone, ReplicateToOne))
	assert.False(t, ObserveItem{}.Check(PersistToMaster, ReplicateToNone))
}

func TestCheckPersistToMasterNeedsTheMaster(t *testing.T) {
	// two persisted replicas are not a persisted master
	item := ObserveItem{Replicated: 2, Persisted: 2}
	assert.False(t, item.Check(PersistToMaster, ReplicateToNone))
	assert.True(t, item.Check(PersistToTwo, ReplicateToTwo))

	master := ObserveItem{Persisted: 1, PersistedMaster: true}
	assert.True(t, master.Check(PersistToMaster, ReplicateToNone))
}

func observeResponse(master bool, status coremsg.ObserveStatus, cas uint64) *coremsg.ObserveResponse {
	return &coremsg.ObserveResponse{
		Status:        coremsg.StatusSuccess,
		ObserveStatus: status,
		Cas:           cas,
		Master:        master,
		Content:       corebuf.FromString(""),
	}
}

func TestItemFromMasterPersisted(t *testing.T) {
	resp := observeResponse(true, coremsg.ObserveStatusFoundPersisted, 1234)
	item, err := ItemFromResponse("id", resp, 1234, false,
		coremsg.ObserveStatusFoundPersisted, coremsg.ObserveStatusFoundNotPersisted)
	require.NoError(t, err)

	assert.Equal(t, ObserveItem{Persisted: 1, PersistedMaster: true}, item)
	assert.EqualValues(t, 0, resp.Content.RefCnt())
}

func TestItemFromMasterNotPersisted(t *testing.T) {
	resp := observeResponse(true, coremsg.ObserveStatusFoundNotPersisted, 1234)
	item, err := ItemFromResponse("id", resp, 1234, false,
		coremsg.ObserveStatusFoundPersisted, coremsg.ObserveStatusFoundNotPersisted)
	require.NoError(t, err)

	assert.Equal(t, ObserveItem{}, item)
	assert.EqualValues(t, 0, resp.Content.RefCnt())
}

func TestItemFromMasterCasMismatch(t *testing.T) {
	resp := observeResponse(true, coremsg.ObserveStatusFoundPersisted, 9999)
	_, err := ItemFromResponse("id", resp, 1234, false,
		coremsg.ObserveStatusFoundPersisted, coremsg.ObserveStatusFoundNotPersisted)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDocumentConcurrentlyModified))
	assert.EqualValues(t, 0, resp.Content.RefCnt())
}

func TestItemFromMasterDeletedCasZero(t *testing.T) {
	// a real delete comes back with cas 0 and the persisted sentinel; this
	// must pass despite the cas mismatch
	resp := observeResponse(true, coremsg.ObserveStatusNotFoundPersisted, 0)
	item, err := ItemFromResponse("id", resp, 1234, true,
		coremsg.ObserveStatusNotFoundPersisted, coremsg.ObserveStatusNotFoundNotPersisted)
	require.NoError(t, err)

	assert.Equal(t, ObserveItem{Persisted: 1, PersistedMaster: true}, item)
}

func TestItemFromReplicaPersistedCountsBoth(t *testing.T) {
	// a persist on a replica implies the replica holds the copy
	resp := observeResponse(false, coremsg.ObserveStatusFoundPersisted, 1234)
	item, err := ItemFromResponse("id", resp, 1234, false,
		coremsg.ObserveStatusFoundPersisted, coremsg.ObserveStatusFoundNotPersisted)
	require.NoError(t, err)

	assert.Equal(t, ObserveItem{Replicated: 1, Persisted: 1}, item)
}

func TestItemFromReplicaInMemory(t *testing.T) {
	resp := observeResponse(false, coremsg.ObserveStatusFoundNotPersisted, 1234)
	item, err := ItemFromResponse("id", resp, 1234, false,
		coremsg.ObserveStatusFoundPersisted, coremsg.ObserveStatusFoundNotPersisted)
	require.NoError(t, err)

	assert.Equal(t, ObserveItem{Replicated: 1}, item)
}

func TestItemFromReplicaCasMismatchIsIgnored(t *testing.T) {
	resp := observeResponse(false, coremsg.ObserveStatusFoundPersisted, 9999)
	item, err := ItemFromResponse("id", resp, 1234, false,
		coremsg.ObserveStatusFoundPersisted, coremsg.ObserveStatusFoundNotPersisted)
	require.NoError(t, err)

	assert.Equal(t, ObserveItem{}, item)
	assert.EqualValues(t, 0, resp.Content.RefCnt())
}

func TestItemFromReplicaOtherStatus(t *testing.T) {
	resp := observeResponse(false, coremsg.ObserveStatusLogicallyDeleted, 1234)
	item, err := ItemFromResponse("id", resp, 1234, false,
		coremsg.ObserveStatusFoundPersisted, coremsg.ObserveStatusFoundNotPersisted)
	require.NoError(t, err)

	assert.Equal(t, ObserveItem{}, item)
}
