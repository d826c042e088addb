package coreconfig

// ServiceDirect is the service tag identifying the binary key-value port on
// a node.  Only nodes exposing this service can answer carrier requests.
const ServiceDirect = "direct"

// NodeInfo describes a single cluster node and the services it exposes as a
// mapping from service tag to port.
type NodeInfo struct {
	Hostname string
	Services map[string]int
}

// HasService returns whether the node exposes the given service tag.
func (n NodeInfo) HasService(tag string) bool {
	_, ok := n.Services[tag]
	return ok
}

// HasKv returns whether the node exposes the binary key-value service.
func (n NodeInfo) HasKv() bool {
	return n.HasService(ServiceDirect)
}

// BucketConfig is an immutable snapshot of the topology of one bucket.  A
// newer snapshot always replaces the previous one as a whole, the contents
// are never mutated in place.
type BucketConfig struct {
	Name        string
	Password    string
	Nodes       []NodeInfo
	NumReplicas int
}

// ClusterConfig maps bucket names to their current BucketConfig.  It is a
// read-only snapshot; deriving an updated cluster configuration goes
// through WithBucket/WithoutBucket which copy the mapping.
type ClusterConfig struct {
	buckets map[string]*BucketConfig
}

// NewClusterConfig creates a snapshot holding the given bucket configs.  The
// map is copied, the caller keeps ownership of its argument.
func NewClusterConfig(buckets map[string]*BucketConfig) *ClusterConfig {
	copied := make(map[string]*BucketConfig, len(buckets))
	for name, cfg := range buckets {
		copied[name] = cfg
	}
	return &ClusterConfig{buckets: copied}
}

// BucketConfig returns the config for the named bucket, or nil when the
// bucket is not part of this snapshot.
func (c *ClusterConfig) BucketConfig(name string) *BucketConfig {
	return c.buckets[name]
}

// BucketConfigs returns the bucket configs keyed by name.  The returned map
// must not be modified.
func (c *ClusterConfig) BucketConfigs() map[string]*BucketConfig {
	return c.buckets
}

// WithBucket derives a new snapshot with the given bucket config replacing
// any previous entry of the same name.
func (c *ClusterConfig) WithBucket(cfg *BucketConfig) *ClusterConfig {
	next := NewClusterConfig(c.buckets)
	next.buckets[cfg.Name] = cfg
	return next
}

// WithoutBucket derives a new snapshot with the named bucket removed.
func (c *ClusterConfig) WithoutBucket(name string) *ClusterConfig {
	next := NewClusterConfig(c.buckets)
	delete(next.buckets, name)
	return next
}

// Provider is the sink for freshly fetched bucket configurations.  It is
// expected to be safe for use from multiple goroutines.
type Provider interface {
	ProposeBucketConfig(name string, body string)
}
