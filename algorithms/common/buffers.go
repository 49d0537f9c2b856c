package common

// FrameRing is a fixed-depth ring buffer of equally sized frames addressed
// by logical frame index rather than by physical slot. Streaming networks
// with temporal lookahead constantly reason about "frame t-3" while frames
// keep arriving; giving the ring an absolute index space keeps that
// arithmetic in one place and makes the zero-padding at the start of a
// stream implicit: any index outside the retained window reads as a zero
// frame.
//
// A FrameRing is owned by a single processing job and is not safe for
// concurrent use.
type FrameRing struct {
	frames [][]float64
	width  int
	depth  int
	first  int // logical index of the first frame ever pushed
	next   int // logical index the next Push will receive
	zero   []float64
}

// NewFrameRing creates a ring that retains the last depth frames of width
// samples each. The first pushed frame receives logical index start.
func NewFrameRing(depth, width, start int) *FrameRing {
	r := &FrameRing{
		frames: make([][]float64, depth),
		width:  width,
		depth:  depth,
		zero:   make([]float64, width),
	}
	for i := range r.frames {
		r.frames[i] = make([]float64, width)
	}
	r.Reset(start)
	return r
}

// Push appends a frame, overwriting the oldest retained frame. The frame is
// copied; the caller keeps ownership of the slice.
func (r *FrameRing) Push(frame []float64) {
	slot := r.frames[mod(r.next, r.depth)]
	n := copy(slot, frame)
	for i := n; i < r.width; i++ {
		slot[i] = 0
	}
	r.next++
}

// Frame returns the frame at the given logical index, or an all-zero frame
// when the index lies before the first push, after the newest frame, or has
// already been overwritten. The returned slice is read-only and only valid
// until the slot is overwritten.
func (r *FrameRing) Frame(index int) []float64 {
	if index < r.first || index >= r.next || index < r.next-r.depth {
		return r.zero
	}
	return r.frames[mod(index, r.depth)]
}

// Next returns the logical index the next Push will receive.
func (r *FrameRing) Next() int {
	return r.next
}

// Depth returns the number of frames the ring retains.
func (r *FrameRing) Depth() int {
	return r.depth
}

// Width returns the frame width in samples.
func (r *FrameRing) Width() int {
	return r.width
}

// Reset zeroes the ring and restarts logical indexing at start.
func (r *FrameRing) Reset(start int) {
	for _, f := range r.frames {
		for i := range f {
			f[i] = 0
		}
	}
	r.first = start
	r.next = start
}

// mod is a floored modulo: logical indices may be negative for frames that
// precede a stream's alignment origin.
func mod(i, n int) int {
	m := i % n
	if m < 0 {
		m += n
	}
	return m
}
