package pwconfig

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/achuala/go-pasta/pkg/util/jsonschema"
)

const documentSchemaID = "https://github.com/achuala/go-pasta/pwconfig.schema.json"

//go:embed pwconfig.schema.json
var documentSchema []byte

var documentValidator = sync.OnceValues(func() (*jsonschema.JsonSchemaValidator, error) {
	return jsonschema.NewJsonSchemaValidator(documentSchema)
})

// validate checks the document structure. Parameter values are checked later
// against the schema of their primitive.
func validate(doc *Document, raw map[string]any) error {
	v, err := documentValidator()
	if err != nil {
		return errors.Wrap(err, "config schema")
	}
	err = v.ValidateMap(documentSchemaID, raw)
	if err == nil {
		return nil
	}
	leaf := jsonschema.LeafCause(err)
	if leaf == nil {
		return &ParseError{File: doc.Name, Err: err}
	}
	path := pointerPath(leaf.InstanceLocation)
	return &ParseError{
		File:  doc.Name,
		Line:  doc.Line(path...),
		Field: fieldName(path),
		Err:   errors.New(leaf.Message),
	}
}

// pointerPath splits a JSON pointer into unescaped segments.
func pointerPath(ptr string) []string {
	if ptr == "" || ptr == "/" {
		return nil
	}
	segs := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	for i, s := range segs {
		segs[i] = strings.NewReplacer("~1", "/", "~0", "~").Replace(s)
	}
	return segs
}
