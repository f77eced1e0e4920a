// Package bbuf implements the bounded producer/consumer buffer.
//
// A Buffer couples a ring.Store with one mutex and two counting signals:
// filled (initially 0) and empty (initially the capacity). A producer
// reserves an empty slot, writes under the lock and releases filled; a
// consumer does the opposite. Reservations are bounded by a timeout, and a
// timed out attempt is a normal outcome reported as "buffer full" or
// "buffer empty", never an error.
//
// When no operation is in flight, filled + empty equals the capacity.
package bbuf
