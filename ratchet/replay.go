package ratchet

// replayWindow implements spec §4.5's sliding-window replay protection: a
// set of seen (nonce, index) observations scoped to the current receiving
// epoch, cleared on every DH ratchet.
type replayWindow struct {
	width int
	seen  map[string]struct{}
}

func newReplayWindow(width int) *replayWindow {
	if width <= 0 {
		width = DefaultReplayWindow
	}
	return &replayWindow{width: width, seen: make(map[string]struct{})}
}

func key(nonce []byte, index uint32) string {
	b := make([]byte, len(nonce)+4)
	copy(b, nonce)
	b[len(nonce)] = byte(index >> 24)
	b[len(nonce)+1] = byte(index >> 16)
	b[len(nonce)+2] = byte(index >> 8)
	b[len(nonce)+3] = byte(index)
	return string(b)
}

// check reports whether (nonce, index) is acceptable given currentIndex: it
// must not already be seen, and index must not be below the trailing edge
// of the window (currentIndex - width).
func (w *replayWindow) check(nonce []byte, index, currentIndex uint32) bool {
	if int64(currentIndex)-int64(index) > int64(w.width) {
		return false
	}
	_, dup := w.seen[key(nonce, index)]
	return !dup
}

// record marks (nonce, index) as consumed.
func (w *replayWindow) record(nonce []byte, index uint32) {
	w.seen[key(nonce, index)] = struct{}{}
}

// clear resets the window, used on epoch change alongside the old chain's
// cache being discarded.
func (w *replayWindow) clear() {
	w.seen = make(map[string]struct{})
}
