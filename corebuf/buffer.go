/*
Copyright 2022-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package corebuf

import (
	"go.uber.org/atomic"
)

// Buffer is a reference-counted byte buffer used to carry the content of
// protocol responses.  A freshly created buffer holds a single reference
// which belongs to whoever receives the response carrying it.  The receiver
// must call Release exactly once on every path, including error paths.
type Buffer struct {
	data []byte
	refs atomic.Int32
}

// New creates a buffer holding data with a reference count of one.
func New(data []byte) *Buffer {
	b := &Buffer{
		data: data,
	}
	b.refs.Store(1)
	return b
}

// FromString creates a buffer holding the UTF-8 bytes of s with a reference
// count of one.
func FromString(s string) *Buffer {
	return New([]byte(s))
}

// Retain adds a reference to the buffer and returns it for chaining.
func (b *Buffer) Retain() *Buffer {
	if b.refs.Inc() <= 1 {
		panic("corebuf: retain on a released buffer")
	}
	return b
}

// Release drops a reference to the buffer.  Releasing a buffer whose count
// is already zero is a programming error and panics.
func (b *Buffer) Release() {
	if b.refs.Dec() < 0 {
		panic("corebuf: release on a released buffer")
	}
}

// RefCnt returns the current reference count.
func (b *Buffer) RefCnt() int32 {
	return b.refs.Load()
}

// Len returns the number of bytes held by the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the underlying bytes.  The buffer must still hold at least
// one reference.
func (b *Buffer) Bytes() []byte {
	if b.refs.Load() <= 0 {
		panic("corebuf: access to a released buffer")
	}
	return b.data
}

// String returns the buffer content decoded as UTF-8.  The buffer must
// still hold at least one reference.
func (b *Buffer) String() string {
	return string(b.Bytes())
}
