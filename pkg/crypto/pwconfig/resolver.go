package pwconfig

import (
	"maps"
	"slices"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/pkg/errors"

	"github.com/achuala/go-pasta/pkg/crypto/hash"
)

var topLevelKeys = []string{"default", "roles", "algorithms", "aliases"}

type fileSpec struct {
	Algorithm string         `yaml:"algorithm"`
	Params    map[string]any `yaml:"params"`
}

type fileConfig struct {
	Default    *fileSpec                 `yaml:"default"`
	Roles      map[string]fileSpec       `yaml:"roles"`
	Algorithms map[string]map[string]any `yaml:"algorithms"`
	Aliases    map[string]string         `yaml:"aliases"`
}

// Resolver turns configuration documents into a Config, checking every
// algorithm and parameter against a registry.
type Resolver struct {
	reg    *hash.Registry
	loader Loader
	logger log.Logger
	log    *log.Helper
}

type Option func(*Resolver)

func WithLoader(l Loader) Option {
	return func(r *Resolver) {
		r.loader = l
	}
}

func WithLogger(l log.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

func NewResolver(reg *hash.Registry, opts ...Option) *Resolver {
	r := &Resolver{reg: reg, loader: YAMLLoader{}, logger: log.DefaultLogger}
	for _, opt := range opts {
		opt(r)
	}
	r.log = log.NewHelper(log.With(r.logger, "module", "pwconfig"))
	return r
}

// FromFile loads and resolves the configuration at path. No partial Config
// is returned on error.
func (r *Resolver) FromFile(path string) (*Config, error) {
	doc, err := r.loader.Load(path)
	if err != nil {
		return nil, err
	}
	return r.build(doc)
}

// Parse resolves a YAML document held in memory.
func (r *Resolver) Parse(data []byte, name string) (*Config, error) {
	doc, err := YAMLLoader{}.Decode(data, name)
	if err != nil {
		return nil, err
	}
	return r.build(doc)
}

// Default returns the built-in policy without touching the filesystem.
func (r *Resolver) Default() *Config {
	return Default()
}

func (r *Resolver) build(doc *Document) (*Config, error) {
	for _, k := range doc.Keys() {
		if !slices.Contains(topLevelKeys, k) {
			return nil, &ParseError{
				File:  doc.Name,
				Line:  doc.Line(k),
				Field: k,
				Err:   errors.Errorf("unknown top-level key %q", k),
			}
		}
	}
	raw, err := doc.Map()
	if err != nil {
		return nil, err
	}
	if err := validate(doc, raw); err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := doc.Decode(&fc); err != nil {
		return nil, err
	}

	for _, id := range slices.Sorted(maps.Keys(fc.Algorithms)) {
		p, err := r.reg.Lookup(id)
		if err != nil {
			return nil, located(err, doc, "algorithms", id)
		}
		if _, err := p.Schema().Canonical(fc.Aliases, fc.Algorithms[id]); err != nil {
			return nil, located(err, doc, "algorithms", id)
		}
	}

	defID := hash.IDArgon2id
	var defParams map[string]any
	if fc.Default != nil {
		if fc.Default.Algorithm != "" {
			defID = fc.Default.Algorithm
		}
		defParams = fc.Default.Params
	}
	def, err := r.resolve(doc, &fc, defID, nil, defParams, "default")
	if err != nil {
		return nil, err
	}

	roles := make(map[string]hash.Spec, len(fc.Roles))
	for _, name := range slices.Sorted(maps.Keys(fc.Roles)) {
		rs := fc.Roles[name]
		id := rs.Algorithm
		if id == "" {
			id = defID
		}
		var inherited map[string]any
		if id == defID {
			inherited = defParams
		}
		spec, err := r.resolve(doc, &fc, id, inherited, rs.Params, "roles", name)
		if err != nil {
			return nil, err
		}
		roles[name] = spec
		r.log.Debugw("msg", "role resolved", "source", doc.Name, "role", name, "spec", spec.String())
	}

	cfg := New(def, roles)
	cfg.source = doc.Name
	r.log.Infow("msg", "password policy loaded", "source", doc.Name, "default", def.String(), "roles", len(roles))
	return cfg, nil
}

// resolve layers, lowest first: schema defaults, algorithms[id], inherited
// default params, own params.
func (r *Resolver) resolve(doc *Document, fc *fileConfig, id string, inherited, own map[string]any, field ...string) (hash.Spec, error) {
	p, err := r.reg.Lookup(id)
	if err != nil {
		return hash.Spec{}, located(err, doc, slices.Concat(field, []string{"algorithm"})...)
	}
	params, err := p.Schema().Resolve(fc.Aliases, fc.Algorithms[id], inherited, own)
	if err != nil {
		return hash.Spec{}, located(err, doc, slices.Concat(field, []string{"params"})...)
	}
	return hash.Spec{ID: id, Params: params}, nil
}

// FromFile loads path against the default registry.
func FromFile(path string) (*Config, error) {
	return NewResolver(hash.DefaultRegistry()).FromFile(path)
}

// Parse resolves data against the default registry.
func Parse(data []byte, name string) (*Config, error) {
	return NewResolver(hash.DefaultRegistry()).Parse(data, name)
}

// Default is argon2id with library default parameters.
func Default() *Config {
	params, err := hash.NewHasherArgon2().Schema().Resolve(nil)
	if err != nil {
		panic(err)
	}
	return New(hash.Spec{ID: hash.IDArgon2id, Params: params}, nil)
}
