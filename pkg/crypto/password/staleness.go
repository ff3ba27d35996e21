package password

import (
	"github.com/achuala/go-pasta/pkg/crypto/hash"
	"github.com/achuala/go-pasta/pkg/crypto/hashfmt"
)

// StalenessFunc reports whether stored should be recomputed under active.
// schema belongs to the active primitive.
type StalenessFunc func(stored *hashfmt.HashString, active hash.Spec, schema hash.Schema) bool

// DefaultStaleness treats a token as stale when it is wrapped, uses another
// primitive, has a lower cost parameter, or differs in any other parameter.
// A stored cost above the active one is not stale.
func DefaultStaleness(stored *hashfmt.HashString, active hash.Spec, schema hash.Schema) bool {
	if stored.Inner != nil || stored.Spec.ID != active.ID {
		return true
	}
	for _, d := range schema {
		s, _ := stored.Spec.Params.Get(d.Name)
		a, _ := active.Params.Get(d.Name)
		if d.Weaker(s, a) {
			return true
		}
	}
	return false
}
