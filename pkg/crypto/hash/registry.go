package hash

import (
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

type entry struct {
	prim Primitive
}

// Equaler is implemented by primitives that define their own equivalence,
// for example by comparing key material.
type Equaler interface {
	Equal(other Primitive) bool
}

// Registry maps identifiers to primitives. Lookups read an immutable snapshot
// and never block; registrations copy the snapshot under a mutex.
type Registry struct {
	mu   sync.Mutex
	snap atomic.Pointer[map[string]entry]
}

func NewRegistry() *Registry {
	r := &Registry{}
	empty := map[string]entry{}
	r.snap.Store(&empty)
	return r
}

// Register adds the primitive built by f under id. Registering a factory
// that builds an equivalent primitive again is a no-op; anything else under a
// taken id fails with ErrDuplicateIdentifier. Factories are compared by what
// they build, so a fresh closure over equal state counts as the same.
func (r *Registry) Register(id string, f Factory) error {
	if id == "" || !identRe.MatchString(id) {
		return errors.Errorf("invalid primitive identifier %q", id)
	}
	if f == nil {
		return errors.Errorf("nil factory for %q", id)
	}
	prim := f()
	if prim == nil || prim.ID() != id {
		return errors.Errorf("factory for %q builds a different primitive", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cur := *r.snap.Load()
	if existing, ok := cur[id]; ok {
		if samePrimitive(existing.prim, prim) {
			return nil
		}
		return errors.Wrapf(ErrDuplicateIdentifier, "%q", id)
	}
	next := make(map[string]entry, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[id] = entry{prim: prim}
	r.snap.Store(&next)
	return nil
}

func samePrimitive(a, b Primitive) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	return reflect.DeepEqual(a, b)
}

// Lookup returns the primitive registered under id.
func (r *Registry) Lookup(id string) (Primitive, error) {
	e, ok := (*r.snap.Load())[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPrimitive, "%q", id)
	}
	return e.prim, nil
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	cur := *r.snap.Load()
	ids := make([]string, 0, len(cur))
	for id := range cur {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewSpec resolves raw parameters for id over the primitive defaults.
func (r *Registry) NewSpec(id string, raw map[string]any) (Spec, error) {
	p, err := r.Lookup(id)
	if err != nil {
		return Spec{}, err
	}
	params, err := p.Schema().Resolve(nil, raw)
	if err != nil {
		return Spec{}, errors.WithMessage(err, id)
	}
	return Spec{ID: id, Params: params}, nil
}

// Check validates a spec against the schema of its primitive.
func (r *Registry) Check(s Spec) error {
	p, err := r.Lookup(s.ID)
	if err != nil {
		return err
	}
	return errors.WithMessage(p.Schema().Validate(s.Params), s.ID)
}

// RegisterBuiltins registers the unkeyed built-in primitives.
func RegisterBuiltins(r *Registry) error {
	for id, f := range map[string]Factory{
		IDArgon2id: NewHasherArgon2,
		IDScrypt:   NewHasherScrypt,
		IDBcrypt:   NewHasherBcrypt,
		IDPbkdf2:   NewHasherPbkdf2,
	} {
		if err := r.Register(id, f); err != nil {
			return err
		}
	}
	return nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the process-wide registry holding the built-in
// primitives. Further primitives may be registered on it at runtime.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		if err := RegisterBuiltins(defaultRegistry); err != nil {
			panic(err)
		}
	})
	return defaultRegistry
}
