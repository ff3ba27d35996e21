package hashfmt

import (
	"bytes"
	"slices"

	"github.com/achuala/go-pasta/pkg/crypto/hash"
)

// HashString is a decoded hash token. Only the outermost layer carries a
// digest; wrapped layers keep their spec and salt so the chain can be
// recomputed from the password.
type HashString struct {
	Spec   hash.Spec
	Salt   []byte
	Digest []byte
	Inner  *HashString
}

// String returns the encoded token.
func (h *HashString) String() string {
	return Encode(h)
}

// Depth is the number of layers, 1 for an unwrapped token.
func (h *HashString) Depth() int {
	n := 0
	for l := h; l != nil; l = l.Inner {
		n++
	}
	return n
}

// Leaf returns the innermost layer.
func (h *HashString) Leaf() *HashString {
	l := h
	for l.Inner != nil {
		l = l.Inner
	}
	return l
}

// Chain lists the primitive identifiers in the order they are applied to
// the password, innermost first.
func (h *HashString) Chain() []string {
	var ids []string
	for l := h; l != nil; l = l.Inner {
		ids = append(ids, l.Spec.ID)
	}
	slices.Reverse(ids)
	return ids
}

func (h *HashString) Clone() *HashString {
	if h == nil {
		return nil
	}
	return &HashString{
		Spec:   h.Spec.Clone(),
		Salt:   bytes.Clone(h.Salt),
		Digest: bytes.Clone(h.Digest),
		Inner:  h.Inner.Clone(),
	}
}

func (h *HashString) Equal(o *HashString) bool {
	if h == nil || o == nil {
		return h == o
	}
	return h.Spec.Equal(o.Spec) &&
		bytes.Equal(h.Salt, o.Salt) &&
		bytes.Equal(h.Digest, o.Digest) &&
		h.Inner.Equal(o.Inner)
}
