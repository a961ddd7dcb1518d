// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package future

// Promise is the producer side of a single value that becomes available at
// some later point in time. A promise must be fulfilled exactly once.
type Promise[T any] chan<- T

// Future is the consumer side of a value produced by a Promise.
type Future[T any] <-chan T

// Create produces a connected Promise/Future pair.
func Create[T any]() (Promise[T], Future[T]) {
	channel := make(chan T, 1)
	return channel, channel
}

// Fulfill provides the promised value, unblocking any consumer awaiting the
// connected future.
func (p Promise[T]) Fulfill(value T) {
	p <- value
	close(p)
}

// Await blocks until the promised value is available and returns it.
func (f Future[T]) Await() T {
	return <-f
}
