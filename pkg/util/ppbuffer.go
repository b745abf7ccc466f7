package util

// PPBuffer is a growable byte buffer that, unlike bytes.Buffer, allows
// resizing to a given length without zero-filling writes. Frame readers
// resize to the declared message size and fill via io.ReadFull.
type PPBuffer struct {
	buf []byte
}

func NewPPBuffer(buf []byte) *PPBuffer {
	return &PPBuffer{buf: buf}
}

func (b *PPBuffer) Bytes() []byte {
	return b.buf
}

func (b *PPBuffer) Len() int {
	return len(b.buf)
}

func (b *PPBuffer) Cap() int {
	return cap(b.buf)
}

func (b *PPBuffer) Reset() {
	b.buf = b.buf[:0]
}

func (b *PPBuffer) Grow(n int) {
	if n <= cap(b.buf)-len(b.buf) {
		return
	}
	grown := make([]byte, len(b.buf), len(b.buf)+n)
	copy(grown, b.buf)
	b.buf = grown
}

// Resize discards current content and sets the length to n.
func (b *PPBuffer) Resize(n int) {
	b.Reset()
	if n > cap(b.buf) {
		b.Grow(n)
	}
	b.buf = b.buf[:n]
}

func (b *PPBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *PPBuffer) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}
