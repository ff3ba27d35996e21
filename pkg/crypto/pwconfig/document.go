package pwconfig

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Loader reads a configuration document from a path.
type Loader interface {
	Load(path string) (*Document, error)
}

// Document is a parsed configuration file that remembers the source line of
// every node.
type Document struct {
	Name string
	// Root is the top-level mapping, nil for an empty document.
	Root *yaml.Node
}

// YAMLLoader loads YAML documents from the filesystem.
type YAMLLoader struct{}

func (l YAMLLoader) Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrConfigNotFound, path)
		}
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}
	return l.Decode(data, path)
}

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

// Decode parses data; name is used in error messages.
func (YAMLLoader) Decode(data []byte, name string) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{File: name, Line: errLine(err), Err: err}
	}
	doc := &Document{Name: name}
	if root.Kind == 0 || len(root.Content) == 0 {
		return doc, nil
	}
	top := root.Content[0]
	if top.Kind == yaml.ScalarNode && top.Tag == "!!null" {
		return doc, nil
	}
	if top.Kind != yaml.MappingNode {
		return nil, &ParseError{File: name, Line: top.Line, Err: errors.New("document must be a mapping")}
	}
	doc.Root = top
	return doc, nil
}

// Keys lists the top-level keys in document order.
func (d *Document) Keys() []string {
	if d.Root == nil {
		return nil
	}
	keys := make([]string, 0, len(d.Root.Content)/2)
	for i := 0; i+1 < len(d.Root.Content); i += 2 {
		keys = append(keys, d.Root.Content[i].Value)
	}
	return keys
}

// Line returns the line of the deepest key of path present in the
// document, or 0.
func (d *Document) Line(path ...string) int {
	line := 0
	n := d.Root
	for _, seg := range path {
		if n == nil || n.Kind != yaml.MappingNode {
			break
		}
		var next *yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == seg {
				line = n.Content[i].Line
				next = n.Content[i+1]
				break
			}
		}
		if next == nil {
			break
		}
		n = next
	}
	return line
}

// Map decodes the document into generic values.
func (d *Document) Map() (map[string]any, error) {
	out := map[string]any{}
	if d.Root == nil {
		return out, nil
	}
	if err := d.Root.Decode(&out); err != nil {
		return nil, d.parseError(err)
	}
	return out, nil
}

// Decode decodes the document into v.
func (d *Document) Decode(v any) error {
	if d.Root == nil {
		return nil
	}
	if err := d.Root.Decode(v); err != nil {
		return d.parseError(err)
	}
	return nil
}

func (d *Document) parseError(err error) *ParseError {
	return &ParseError{File: d.Name, Line: errLine(err), Err: err}
}

// errLine extracts the first line number yaml reports in err.
func errLine(err error) int {
	m := yamlLineRe.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func fieldName(path []string) string {
	return strings.Join(path, ".")
}
