package hash

import (
	"math"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/inhies/go-bytesize"
	"github.com/pkg/errors"
)

// ParamKind is the value type of a primitive parameter.
type ParamKind uint8

const (
	// KindInt is a decimal integer.
	KindInt ParamKind = iota
	// KindString is an identifier, optionally restricted to a set of choices.
	KindString
	// KindByteSize is a memory size. The canonical unit is KiB; configuration
	// files may also use sizes such as "64MB".
	KindByteSize
)

// identifier values must never contain a token delimiter.
var identRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ParamDef declares one accepted parameter of a primitive.
type ParamDef struct {
	Name    string
	Kind    ParamKind
	Min     int64
	Max     int64
	Default string // empty means required
	Choices []string
	// Cost marks parameters where a higher value is stronger.
	Cost    bool
	Aliases []string
}

// Normalize converts v into the canonical string form of the parameter and
// checks it against the declared range.
func (d ParamDef) Normalize(v any) (string, error) {
	switch d.Kind {
	case KindInt:
		n, err := toInt(v)
		if err != nil {
			return "", invalidParam("%s: %v", d.Name, err)
		}
		return d.checkRange(n)
	case KindByteSize:
		n, err := toKiB(v)
		if err != nil {
			return "", invalidParam("%s: %v", d.Name, err)
		}
		return d.checkRange(n)
	default:
		s, err := toString(v)
		if err != nil {
			return "", invalidParam("%s: %v", d.Name, err)
		}
		if !identRe.MatchString(s) {
			return "", invalidParam("%s: value %q contains illegal characters", d.Name, s)
		}
		if len(d.Choices) > 0 && !slices.Contains(d.Choices, s) {
			return "", invalidParam("%s: %q is not one of %s", d.Name, s, strings.Join(d.Choices, ", "))
		}
		return s, nil
	}
}

func (d ParamDef) checkRange(n int64) (string, error) {
	if n < d.Min || (d.Max > 0 && n > d.Max) {
		return "", invalidParam("%s: %d is outside [%d, %d]", d.Name, n, d.Min, d.Max)
	}
	return strconv.FormatInt(n, 10), nil
}

// Weaker reports whether the stored value is weaker than the active one.
// Non-cost parameters are weaker whenever they differ.
func (d ParamDef) Weaker(stored, active string) bool {
	if !d.Cost {
		return stored != active
	}
	s, err1 := strconv.ParseInt(stored, 10, 64)
	a, err2 := strconv.ParseInt(active, 10, 64)
	if err1 != nil || err2 != nil {
		return stored != active
	}
	return s < a
}

func toInt(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case uint64:
		if t > math.MaxInt64 {
			return 0, strconv.ErrRange
		}
		return int64(t), nil
	case float64:
		if t != math.Trunc(t) || t > math.MaxInt64 || t < math.MinInt64 {
			return 0, errNotInteger(t)
		}
		return int64(t), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	default:
		return 0, errNotInteger(v)
	}
}

func toKiB(v any) (int64, error) {
	if n, err := toInt(v); err == nil {
		return n, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, errNotInteger(v)
	}
	b, err := bytesize.Parse(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return int64(b / bytesize.KB), nil
}

func toString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int, int64, uint64:
		n, err := toInt(t)
		return strconv.FormatInt(n, 10), err
	default:
		return "", errors.Errorf("expected string, got %v", v)
	}
}

func errNotInteger(v any) error { return errors.Errorf("expected integer, got %v", v) }

// Schema is the ordered set of parameters a primitive accepts.
type Schema []ParamDef

// Def returns the definition for a canonical name or one of its aliases.
func (s Schema) Def(name string) (ParamDef, bool) {
	for _, d := range s {
		if d.Name == name || slices.Contains(d.Aliases, name) {
			return d, true
		}
	}
	return ParamDef{}, false
}

// Resolve layers raw parameter maps over the schema defaults, later layers
// winning, and returns the validated parameters in schema order. Keys may be
// canonical names, schema aliases, or keys of the aliases map.
func (s Schema) Resolve(aliases map[string]string, layers ...map[string]any) (Params, error) {
	values := make(map[string]string, len(s))
	for _, d := range s {
		if d.Default != "" {
			values[d.Name] = d.Default
		}
	}
	for _, layer := range layers {
		canonical, err := s.Canonical(aliases, layer)
		if err != nil {
			return nil, err
		}
		for name, v := range canonical {
			values[name] = v
		}
	}
	out := make(Params, 0, len(s))
	for _, d := range s {
		v, ok := values[d.Name]
		if !ok {
			return nil, invalidParam("missing required parameter %s", d.Name)
		}
		out = append(out, Param{Name: d.Name, Value: v})
	}
	return out, nil
}

// Canonical normalizes a single raw layer, keyed by canonical name. It does
// not require every parameter to be present.
func (s Schema) Canonical(aliases map[string]string, layer map[string]any) (map[string]string, error) {
	keys := make([]string, 0, len(layer))
	for k := range layer {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, len(keys))
	seen := make(map[string]string, len(keys))
	for _, k := range keys {
		d, ok := s.Def(k)
		if !ok {
			if target, aliased := aliases[k]; aliased {
				d, ok = s.Def(target)
			}
		}
		if !ok {
			return nil, invalidParam("unknown parameter %q", k)
		}
		if prev, dup := seen[d.Name]; dup {
			return nil, invalidParam("%q and %q both set %s", prev, k, d.Name)
		}
		seen[d.Name] = k
		v, err := d.Normalize(layer[k])
		if err != nil {
			return nil, err
		}
		out[d.Name] = v
	}
	return out, nil
}

// Parse reads the "k=v,k=v" form used in hash strings. Every parameter must
// be present exactly once, by canonical name and in canonical form.
func (s Schema) Parse(encoded string) (Params, error) {
	got := make(map[string]string, len(s))
	if encoded != "" {
		for _, kv := range strings.Split(encoded, ",") {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return nil, invalidParam("malformed parameter %q", kv)
			}
			if _, dup := got[name]; dup {
				return nil, invalidParam("parameter %s repeated", name)
			}
			got[name] = value
		}
	}
	out := make(Params, 0, len(s))
	for _, d := range s {
		raw, ok := got[d.Name]
		if !ok {
			return nil, invalidParam("missing parameter %s", d.Name)
		}
		delete(got, d.Name)
		v, err := d.Normalize(raw)
		if err != nil {
			return nil, err
		}
		if v != raw {
			return nil, invalidParam("%s: %q is not canonical", d.Name, raw)
		}
		out = append(out, Param{Name: d.Name, Value: v})
	}
	for name := range got {
		return nil, invalidParam("unknown parameter %q", name)
	}
	return out, nil
}

// Validate checks that p holds every schema parameter, in schema order, with
// canonical in-range values.
func (s Schema) Validate(p Params) error {
	if len(p) != len(s) {
		return invalidParam("expected %d parameters, got %d", len(s), len(p))
	}
	for i, d := range s {
		if p[i].Name != d.Name {
			return invalidParam("expected parameter %s at position %d, got %s", d.Name, i, p[i].Name)
		}
		v, err := d.Normalize(p[i].Value)
		if err != nil {
			return err
		}
		if v != p[i].Value {
			return invalidParam("%s: %q is not canonical", d.Name, p[i].Value)
		}
	}
	return nil
}

// Param is a single canonical name/value pair.
type Param struct {
	Name  string
	Value string
}

// Params is an ordered parameter list.
type Params []Param

func (p Params) Get(name string) (string, bool) {
	for _, kv := range p {
		if kv.Name == name {
			return kv.Value, true
		}
	}
	return "", false
}

// Int returns the integer value of name, or 0 when absent or not numeric.
func (p Params) Int(name string) int64 {
	v, _ := p.Get(name)
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}

func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	return slices.Clone(p)
}

func (p Params) Equal(o Params) bool {
	return slices.Equal(p, o)
}

// String renders the hash string form "k=v,k=v".
func (p Params) String() string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(kv.Name)
		b.WriteByte('=')
		b.WriteString(kv.Value)
	}
	return b.String()
}
