package httpflow

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// Tee splits a one-shot ReadCloser into two independent ReadClosers that
// each see the full byte stream. Only one of the two readers drives the
// underlying source at a time; the other catches up from a shared buffer
// that is trimmed as soon as both sides have consumed a given byte, so
// memory use is bounded by how far the slower consumer lags behind the
// faster one, not by the total body size.
func Tee(src io.ReadCloser) (a, b io.ReadCloser) {
	s := &teeSource{src: src}
	s.cond = sync.NewCond(&s.mu)
	return &teeBranch{s: s, id: 0}, &teeBranch{s: s, id: 1}
}

type teeSource struct {
	src io.ReadCloser

	mu      sync.Mutex
	cond    *sync.Cond
	buf     bytes.Buffer // bytes read from src not yet consumed by the slower branch
	base    int64        // absolute offset of buf[0]
	offsets [2]int64     // absolute read offset of each branch
	readErr error        // error (including io.EOF) from src, once known
	closed  [2]bool
	srcOnce sync.Once
}

// fillLocked reads more from src into buf, while holding mu, if no other branch is
// already ahead of want. Returns the (possibly updated) readErr.
func (s *teeSource) fillLocked(want int64) error {
	for s.base+int64(s.buf.Len()) < want && s.readErr == nil {
		chunk := make([]byte, 32*1024)
		n, err := s.src.Read(chunk)
		if n > 0 {
			s.buf.Write(chunk[:n])
		}
		if err != nil {
			s.readErr = err
		}
		if n == 0 && err == nil {
			continue
		}
	}
	return s.readErr
}

// trimLocked drops bytes both branches have already consumed.
func (s *teeSource) trimLocked() {
	minOff := s.offsets[0]
	if s.offsets[1] < minOff {
		minOff = s.offsets[1]
	}
	if drop := minOff - s.base; drop > 0 {
		if drop > int64(s.buf.Len()) {
			drop = int64(s.buf.Len())
		}
		s.buf.Next(int(drop))
		s.base += drop
	}
}

func (s *teeSource) read(id int, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := s.offsets[id] + 1
	err := s.fillLocked(want)
	avail := s.base + int64(s.buf.Len()) - s.offsets[id]
	if avail <= 0 {
		if err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	start := s.offsets[id] - s.base
	n := copy(p, s.buf.Bytes()[start:])
	s.offsets[id] += int64(n)
	s.trimLocked()
	s.cond.Broadcast()
	return n, nil
}

func (s *teeSource) close(id int) error {
	s.mu.Lock()
	s.closed[id] = true
	both := s.closed[0] && s.closed[1]
	s.mu.Unlock()
	if both {
		return s.src.Close()
	}
	return nil
}

type teeBranch struct {
	s  *teeSource
	id int
}

func (t *teeBranch) Read(p []byte) (int, error) {
	n, err := t.s.read(t.id, p)
	if errors.Is(err, io.EOF) {
		return n, io.EOF
	}
	return n, err
}

func (t *teeBranch) Close() error {
	return t.s.close(t.id)
}
