/*
Copyright 2022-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package channelmerge

import (
	"sync"
)

// Merge fans any number of input channels into a single output channel.
// Values are forwarded in whatever order they become available on the
// inputs.  The output channel closes once every input channel has closed,
// which is what lets a consumer range over one replica fan-out as a single
// stream.
func Merge[T any](chs ...<-chan T) <-chan T {
	outputCh := make(chan T)

	var wg sync.WaitGroup
	wg.Add(len(chs))
	for _, ch := range chs {
		go func(ch <-chan T) {
			defer wg.Done()
			for v := range ch {
				outputCh <- v
			}
		}(ch)
	}

	go func() {
		wg.Wait()
		close(outputCh)
	}()

	return outputCh
}
