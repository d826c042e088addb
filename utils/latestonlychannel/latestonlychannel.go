/*
Copyright 2022-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package latestonlychannel

// Wrap creates a channel pipe that never blocks its producer for long.  A
// slow consumer only ever sees the most recent value; intermediate values
// received while a send is pending are discarded.  Closing the input
// channel closes the output channel and releases internal resources.
func Wrap[T any](inputCh <-chan T) <-chan T {
	outputCh := make(chan T)

	go func() {
		defer close(outputCh)

		var pending T
		havePending := false

		for {
			if !havePending {
				v, ok := <-inputCh
				if !ok {
					return
				}
				pending = v
				havePending = true
			}

			// try to send the pending value while still accepting newer
			// values from the input, which supersede it
			select {
			case outputCh <- pending:
				havePending = false
			case v, ok := <-inputCh:
				if !ok {
					return
				}
				pending = v
			}
		}
	}()

	return outputCh
}
