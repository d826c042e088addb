package coreconfig

import (
	"bytes"
	"encoding/json"
	"errors"
)

var (
	ErrInvalidConfig = errors.New("bucket config was empty or malformed")
)

// The terse config JSON as served on the carrier (binary) channel.  We only
// decode the fields the client core actually consumes.
type terseNodeJson struct {
	Hostname string         `json:"hostname"`
	Ports    map[string]int `json:"ports"`
}

type terseVbucketMapJson struct {
	NumReplicas int `json:"numReplicas"`
}

type terseConfigJson struct {
	Name             string              `json:"name"`
	Nodes            []terseNodeJson     `json:"nodes"`
	VBucketServerMap terseVbucketMapJson `json:"vBucketServerMap"`
}

// ParseTerseConfig decodes a raw terse bucket config body into a
// BucketConfig.  The server substitutes the literal token $HOST for its own
// address when it does not know it, so the hostname of the node the body
// was fetched from is spliced in when provided.
func ParseTerseConfig(body string, sourceHostname string) (*BucketConfig, error) {
	if len(body) == 0 {
		return nil, ErrInvalidConfig
	}

	configBytes := []byte(body)
	if sourceHostname != "" {
		configBytes = bytes.ReplaceAll(configBytes, []byte("$HOST"), []byte(sourceHostname))
	}

	var configJson terseConfigJson
	if err := json.Unmarshal(configBytes, &configJson); err != nil {
		return nil, err
	}

	if configJson.Name == "" || len(configJson.Nodes) == 0 {
		return nil, ErrInvalidConfig
	}

	nodes := make([]NodeInfo, 0, len(configJson.Nodes))
	for _, nodeJson := range configJson.Nodes {
		services := make(map[string]int, len(nodeJson.Ports))
		for tag, port := range nodeJson.Ports {
			services[tag] = port
		}

		nodes = append(nodes, NodeInfo{
			Hostname: nodeJson.Hostname,
			Services: services,
		})
	}

	return &BucketConfig{
		Name:        configJson.Name,
		Nodes:       nodes,
		NumReplicas: configJson.VBucketServerMap.NumReplicas,
	}, nil
}
