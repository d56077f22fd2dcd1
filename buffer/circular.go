package buffer

import "github.com/pkg/errors"

// CircularVec is a circular buffer of fixed-length float vectors. Once full,
// each Add overwrites the oldest vector. The sampler uses it to hold the most
// recent positions the flow is trained on.
type CircularVec struct {
	buffer    [][]float64 // actual storage
	pos       int         // Current position in buffer
	Dim       int         // Dim is the required length of every vector
	BufSize   int         // BufSize is the fixed number of vectors maintained in memory
	Count     int         // Count is the number of vectors in memory. Will always be <= BufSize
	TotalSeen int64       // TotalSeen is the total number of times Add has been called
}

// NewCircularVec creates a new circular buffer holding totalSize vectors of
// length dim.
func NewCircularVec(totalSize int, dim int) (*CircularVec, error) {
	if totalSize < 1 {
		return nil, errors.Errorf("Invalid buffer size %d", totalSize)
	}
	if dim < 1 {
		return nil, errors.Errorf("Invalid vector dimension %d", dim)
	}

	// One backing array so the rows stay contiguous
	data := make([]float64, totalSize*dim)
	rows := make([][]float64, totalSize)
	for i := range rows {
		rows[i] = data[i*dim : (i+1)*dim : (i+1)*dim]
	}

	return &CircularVec{
		buffer:  rows,
		pos:     0,
		Dim:     dim,
		BufSize: totalSize,
		Count:   0,
	}, nil
}

// Internal: return the next array position
func (c *CircularVec) nextPos() int {
	return (c.pos + 1) % c.BufSize
}

// Add copies the given vector into the buffer, overwriting the oldest entry
func (c *CircularVec) Add(v []float64) error {
	if len(v) != c.Dim {
		return errors.Errorf("Vector length %d != buffer dim %d", len(v), c.Dim)
	}

	c.TotalSeen++

	copy(c.buffer[c.pos], v)

	c.pos = c.nextPos()

	c.Count++
	if c.Count > c.BufSize {
		c.Count = c.BufSize // max out
	}

	return nil
}

// oldest returns the array position of the oldest stored vector
func (c *CircularVec) oldest() int {
	if c.Count < c.BufSize {
		return 0
	}
	return c.pos // Oldest is the one we're about to write
}

// Rows returns copies of the stored vectors, oldest first
func (c *CircularVec) Rows() [][]float64 {
	rows := make([][]float64, 0, c.Count)
	for iter := c.Iter(); iter.Next(); {
		v := iter.Value()
		cp := make([]float64, len(v))
		copy(cp, v)
		rows = append(rows, cp)
	}
	return rows
}

// Iter returns an iterator over the stored vectors, oldest first. The vectors
// returned by the iterator are views into the buffer and are only valid until
// the next Add.
func (c *CircularVec) Iter() *CircularVecIterator {
	return &CircularVecIterator{
		buf:    c,
		curr:   c.oldest(),
		remain: c.Count,
	}
}

// CircularVecIterator provides an iterator over a CircularVec buffer
type CircularVecIterator struct {
	buf    *CircularVec
	curr   int
	remain int
}

// Next returns True when there are more values to read via Value
func (i *CircularVecIterator) Next() bool {
	return i.remain > 0
}

// Value return the next vector to be read. Should only be called if Next() is
// True
func (i *CircularVecIterator) Value() []float64 {
	v := i.buf.buffer[i.curr]
	i.curr = (i.curr + 1) % i.buf.BufSize
	i.remain--
	return v
}
