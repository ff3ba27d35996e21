package pwconfig

import (
	"bytes"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/achuala/go-pasta/pkg/crypto/hash"
)

// Config is a resolved hashing policy: one default spec plus named role
// overrides. It is immutable; accessors return copies.
type Config struct {
	def    hash.Spec
	roles  map[string]hash.Spec
	source string
}

// New builds a Config from already validated specs, such as those returned by
// hash.Registry.NewSpec.
func New(def hash.Spec, roles map[string]hash.Spec) *Config {
	c := &Config{def: def.Clone(), roles: make(map[string]hash.Spec, len(roles))}
	for name, spec := range roles {
		c.roles[name] = spec.Clone()
	}
	return c
}

// Default returns the spec used when no role is given.
func (c *Config) Default() hash.Spec {
	return c.def.Clone()
}

// Role returns the spec configured for name.
func (c *Config) Role(name string) (hash.Spec, bool) {
	spec, ok := c.roles[name]
	if !ok {
		return hash.Spec{}, false
	}
	return spec.Clone(), true
}

// Resolve returns the spec for role, falling back to the default for an
// empty or unknown role.
func (c *Config) Resolve(role string) hash.Spec {
	if spec, ok := c.Role(role); ok {
		return spec
	}
	return c.Default()
}

// Roles lists the configured role names in sorted order.
func (c *Config) Roles() []string {
	return slices.Sorted(maps.Keys(c.roles))
}

// Source is the name the config was loaded from, empty for built configs.
func (c *Config) Source() string {
	return c.source
}

func (c *Config) Equal(o *Config) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.def.Equal(o.def) && maps.EqualFunc(c.roles, o.roles, hash.Spec.Equal)
}

// String renders the canonical YAML form: roles sorted by name, parameters in
// schema order, every scalar value double-quoted. Parse accepts the output.
func (c *Config) String() string {
	root := mapping()
	appendPair(root, "default", specNode(c.def))
	if len(c.roles) > 0 {
		roles := mapping()
		for _, name := range c.Roles() {
			appendPair(roles, name, specNode(c.roles[name]))
		}
		appendPair(root, "roles", roles)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	// encoding a tree of plain string nodes cannot fail
	_ = enc.Encode(root)
	_ = enc.Close()
	return buf.String()
}

func specNode(s hash.Spec) *yaml.Node {
	n := mapping()
	appendPair(n, "algorithm", quoted(s.ID))
	params := mapping()
	for _, p := range s.Params {
		appendPair(params, p.Name, quoted(p.Value))
	}
	appendPair(n, "params", params)
	return n
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func quoted(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: v}
}

func appendPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
}
