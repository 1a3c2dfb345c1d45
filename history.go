package wpe

// HistoryBuffer is the bounded streaming frame history (spec §3, §4.7): it
// never holds more than maxLen (= P) frames. The oldest frame is dropped
// before the newest is appended once the buffer is full, distinct from the
// unbounded estimation-phase frame list (spec §9 "two buffers for one
// concept").
type HistoryBuffer struct {
	frames [][]complex128
	maxLen int
}

// NewHistoryBuffer creates an empty history buffer bounded to maxLen frames.
func NewHistoryBuffer(maxLen int) *HistoryBuffer {
	return &HistoryBuffer{maxLen: maxLen}
}

// Append adds frame to the buffer, dropping the oldest entry first if the
// buffer is already at capacity (spec invariant 2).
func (h *HistoryBuffer) Append(frame []complex128) {
	if len(h.frames) >= h.maxLen {
		h.frames = append(h.frames[1:], frame)
		return
	}
	h.frames = append(h.frames, frame)
}

// Len returns the current number of buffered frames: min(frames seen, P).
func (h *HistoryBuffer) Len() int {
	return len(h.frames)
}

// Frames returns the buffered frames, oldest first, suitable for passing
// directly to LagVector.
func (h *HistoryBuffer) Frames() [][]complex128 {
	return h.frames
}

// Reset empties the buffer.
func (h *HistoryBuffer) Reset() {
	h.frames = nil
}
