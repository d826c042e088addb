/*
Copyright 2023-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package coremetrics

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type CoreMetrics struct {
	ConfigProposals metric.Int64Counter
	ObservePolls    metric.Int64Counter
}

var (
	coreMetrics     *CoreMetrics
	coreMetricsLock sync.Mutex
)

func Get() *CoreMetrics {
	coreMetricsLock.Lock()

	if coreMetrics != nil {
		coreMetricsLock.Unlock()
		return coreMetrics
	}

	coreMetrics = newCoreMetrics()

	coreMetricsLock.Unlock()
	return coreMetrics
}

func newCoreMetrics() *CoreMetrics {
	meter := otel.Meter("com.couchbase.gocorekv")

	configProposals, _ := meter.Int64Counter("config_proposals_total")
	observePolls, _ := meter.Int64Counter("observe_polls_total")

	return &CoreMetrics{
		ConfigProposals: configProposals,
		ObservePolls:    observePolls,
	}
}
