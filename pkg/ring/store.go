// Package ring provides the fixed-capacity circular store of integer payloads.
package ring

// Store is a ring of integers with head (next write) and tail (next read)
// positions. It does no accounting of its own: callers track how many
// entries are valid and serialize access.
type Store struct {
	buf  []int
	head int
	tail int
}

// New creates a Store. Capacity below 1 is treated as 1.
func New(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{buf: make([]int, capacity)}
}

// Cap returns the capacity.
func (s *Store) Cap() int {
	return len(s.buf)
}

// Head returns the next write position.
func (s *Store) Head() int {
	return s.head
}

// Tail returns the next read position.
func (s *Store) Tail() int {
	return s.tail
}

// Write stores v at head and advances head.
// The caller must hold an empty-slot reservation.
func (s *Store) Write(v int) {
	s.buf[s.head] = v
	s.head = s.next(s.head)
}

// Read returns the value at tail and advances tail.
// The caller must hold a filled-slot reservation.
func (s *Store) Read() int {
	v := s.buf[s.tail]
	s.tail = s.next(s.tail)
	return v
}

// Contents returns count entries starting from tail in FIFO order.
// count is clamped to [0, Cap()].
func (s *Store) Contents(count int) []int {
	if count < 0 {
		count = 0
	} else if count > len(s.buf) {
		count = len(s.buf)
	}
	vals := make([]int, count)
	for i, pos := 0, s.tail; i < count; i, pos = i+1, s.next(pos) {
		vals[i] = s.buf[pos]
	}
	return vals
}

func (s *Store) next(pos int) int {
	if pos++; pos >= len(s.buf) {
		pos = 0
	}
	return pos
}
