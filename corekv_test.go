package gocorekv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchbaselabs/gocorekv/corebuf"
	"github.com/couchbaselabs/gocorekv/coreconfig"
	"github.com/couchbaselabs/gocorekv/coremock"
	"github.com/couchbaselabs/gocorekv/coremsg"
)

const sampleTerseConfig = `{
	"name": "default",
	"nodes": [
		{"hostname": "1.2.3.4:8091", "ports": {"direct": 11210}},
		{"hostname": "2.3.4.5:8091", "ports": {"direct": 11210}}
	],
	"vBucketServerMap": {"numReplicas": 1}
}`

func TestProposedConfigUpdatesSnapshot(t *testing.T) {
	facade := coremock.NewScriptedFacade()
	core, err := NewCore(&CoreOptions{Facade: facade})
	require.NoError(t, err)
	defer core.Close()

	core.OpenBucket("default", "secret")

	core.ProposeBucketConfig("default", sampleTerseConfig)

	config := core.ClusterConfig().BucketConfig("default")
	require.NotNil(t, config)
	assert.Equal(t, "default", config.Name)
	assert.Equal(t, "secret", config.Password)
	assert.Equal(t, 1, config.NumReplicas)
	assert.Len(t, config.Nodes, 2)
}

func TestBadProposalIsRejected(t *testing.T) {
	facade := coremock.NewScriptedFacade()
	core, err := NewCore(&CoreOptions{Facade: facade})
	require.NoError(t, err)
	defer core.Close()

	core.OpenBucket("default", "")

	core.ProposeBucketConfig("default", "")
	core.ProposeBucketConfig("default", "not json")

	assert.Nil(t, core.ClusterConfig().BucketConfig("default"))
}

func TestWatchConfigSeesUpdates(t *testing.T) {
	facade := coremock.NewScriptedFacade()
	core, err := NewCore(&CoreOptions{Facade: facade})
	require.NoError(t, err)
	defer core.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()

	configs := core.WatchConfig(watchCtx)

	// the stream starts with the current (empty) snapshot
	initial := <-configs
	assert.Nil(t, initial.BucketConfig("default"))

	core.OpenBucket("default", "")
	core.ProposeBucketConfig("default", sampleTerseConfig)

	deadline := time.After(1 * time.Second)
	for {
		select {
		case config := <-configs:
			if config.BucketConfig("default") != nil {
				return
			}
		case <-deadline:
			t.Fatalf("never saw the accepted config")
		}
	}
}

func TestCloseBucketDropsSnapshotEntry(t *testing.T) {
	facade := coremock.NewScriptedFacade()
	core, err := NewCore(&CoreOptions{Facade: facade})
	require.NoError(t, err)
	defer core.Close()

	core.OpenBucket("default", "")
	core.ProposeBucketConfig("default", sampleTerseConfig)
	require.NotNil(t, core.ClusterConfig().BucketConfig("default"))

	core.CloseBucket("default")
	assert.Nil(t, core.ClusterConfig().BucketConfig("default"))
}

func TestTaintedPollAcceptanceUntaintsBucket(t *testing.T) {
	facade := coremock.NewScriptedFacade()

	facade.OnGetBucketConfig(func() coremsg.SendResult {
		return coremsg.SendResult{Response: &coremsg.GetBucketConfigResponse{
			Status:     coremsg.StatusSuccess,
			BucketName: "default",
			Content:    corebuf.FromString(sampleTerseConfig),
			Origin:     "1.2.3.4",
		}}
	})

	core, err := NewCore(&CoreOptions{
		Facade:       facade,
		PollInterval: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	defer core.Close()

	core.OpenBucket("default", "")

	core.Refresher().MarkTainted(&coreconfig.BucketConfig{
		Name: "default",
		Nodes: []coreconfig.NodeInfo{
			{Hostname: "1.2.3.4:8091", Services: map[string]int{"direct": 11210}},
		},
	})

	// the first tick fetches a config, the acceptance untaints the bucket
	// and the polling stops on its own
	time.Sleep(250 * time.Millisecond)

	require.NotNil(t, core.ClusterConfig().BucketConfig("default"))

	numRequests := facade.NumRequests()
	assert.GreaterOrEqual(t, numRequests, 1)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, numRequests, facade.NumRequests())
}
