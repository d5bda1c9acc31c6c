package link

import (
	"errors"

	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/graph"
)

// Slot is one storage cell wired into a thunk. Input slots are filled
// by the caller before each run and are only ever read by the thunk;
// output slots are read, and possibly taken, after. The thunk sees the
// slot through a live view, so replacing a slot's buffer between runs
// is safe.
type Slot struct {
	typ    graph.Type
	strict bool
	buf    *buffer.Buffer
}

func newSlot(t graph.Type, strict bool) *Slot {
	return &Slot{typ: t, strict: strict}
}

// Type returns the element type and shape the slot stores.
func (s *Slot) Type() graph.Type { return s.typ }

// Strict reports whether the slot rejects element-type mismatches
// instead of converting.
func (s *Slot) Strict() bool { return s.strict }

// Set fills the slot for the next run. The shape must match exactly. A
// matching element type stores b itself, without copying. On a
// mismatch, a strict slot returns a TypeError and a permissive slot
// stores a converted copy, so the caller's buffer is never aliased in
// that case.
func (s *Slot) Set(b *buffer.Buffer) error {
	if b == nil {
		return errors.New("nil buffer")
	}
	if !b.Shape().Equal(s.typ.Shape) {
		return &TypeError{Want: s.typ, Got: b.Type()}
	}
	if b.DType() == s.typ.DType {
		s.buf = b
		return nil
	}
	if s.strict {
		return &TypeError{Want: s.typ, Got: b.Type()}
	}
	conv, err := b.Convert(s.typ.DType)
	if err != nil {
		return err
	}
	s.buf = conv
	return nil
}

// Get returns the current contents, nil when unset.
func (s *Slot) Get() *buffer.Buffer { return s.buf }

// Take removes and returns the contents, leaving the slot unset. A
// thunk run after Take allocates fresh storage, so the taken buffer is
// never written again.
func (s *Slot) Take() *buffer.Buffer {
	b := s.buf
	s.buf = nil
	return b
}

// Clear drops the contents.
func (s *Slot) Clear() { s.buf = nil }

// put stores b without validation. Callers have already checked or
// produced the right type.
func (s *Slot) put(b *buffer.Buffer) { s.buf = b }

// ensure allocates zeroed contents when the slot is empty.
func (s *Slot) ensure() (*buffer.Buffer, error) {
	if s.buf == nil {
		b, err := buffer.New(s.typ)
		if err != nil {
			return nil, err
		}
		s.buf = b
	}
	return s.buf, nil
}

// Storage returns a live view of the slot for execution. The view
// always reflects the slot's current buffer, so prepared units keep
// working when the buffer is replaced between runs.
func (s *Slot) Storage() graph.Storage { return cellStorage{s} }

type cellStorage struct{ s *Slot }

func (cs cellStorage) Type() graph.Type { return cs.s.typ }
func (cs cellStorage) Bytes() []byte    { return cs.s.buf.Bytes() }
