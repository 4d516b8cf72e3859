// Package fixture loads documents and named queries from YAML or JSON files
package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/fnuworsu/gqldb/internal/document"
	"github.com/fnuworsu/gqldb/pkg/query"
	"github.com/fnuworsu/gqldb/pkg/storage"
	"github.com/fnuworsu/gqldb/pkg/value"
)

var ErrNotAList = errors.New("fixture must be a list")

// NamedQuery is one entry of a query set
type NamedQuery struct {
	Name  string
	Query query.Query
}

// Decode parses YAML or JSON, chosen by the file extension, keeping object
// key order.
func Decode(name string, data []byte) (any, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return value.DecodeJSON(data)
	case ".yaml", ".yml":
		var raw any
		if err := yaml.UnmarshalWithOptions(data, &raw, yaml.UseOrderedMap()); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		return fromYAML(raw)
	default:
		return nil, fmt.Errorf("unsupported fixture format %q", filepath.Ext(name))
	}
}

// fromYAML converts decoded YAML into the value model
func fromYAML(v any) (any, error) {
	switch t := v.(type) {
	case yaml.MapSlice:
		obj := value.NewObject()
		for _, item := range t {
			child, err := fromYAML(item.Value)
			if err != nil {
				return nil, err
			}
			obj.Set(fmt.Sprint(item.Key), child)
		}
		return obj, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			child, err := fromYAML(e)
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil
	default:
		return value.Normalize(t)
	}
}

func readList(path string) ([]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoded, err := Decode(path, data)
	if err != nil {
		return nil, err
	}
	if decoded == nil {
		return nil, nil
	}
	list, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotAList)
	}
	return list, nil
}

// LoadDocuments reads a list of document objects
func LoadDocuments(path string) ([]*value.Object, error) {
	list, err := readList(path)
	if err != nil {
		return nil, err
	}

	docs := make([]*value.Object, 0, len(list))
	for i, item := range list {
		obj, ok := item.(*value.Object)
		if !ok {
			return nil, fmt.Errorf("%s: entry %d is %s, not an object", path, i, value.KindOf(item))
		}
		docs = append(docs, obj)
	}
	return docs, nil
}

// LoadQueries reads a list of {name, query} entries
func LoadQueries(path string) ([]NamedQuery, error) {
	list, err := readList(path)
	if err != nil {
		return nil, err
	}

	queries := make([]NamedQuery, 0, len(list))
	for i, item := range list {
		obj, ok := item.(*value.Object)
		if !ok {
			return nil, fmt.Errorf("%s: entry %d is not an object", path, i)
		}

		name, _ := obj.Value("name").(string)
		if name == "" {
			name = fmt.Sprintf("query-%d", i+1)
		}

		q, err := query.ParseInput(obj.Value("query"))
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, name, err)
		}
		queries = append(queries, NamedQuery{Name: name, Query: q})
	}
	return queries, nil
}

// Store writes docs into s. A string _id is kept, otherwise one is
// generated. A _conflicts list of revisions is recorded on the stored
// document. It returns the number of documents written.
func Store(s storage.Store, docs []*value.Object) (int, error) {
	for i, body := range docs {
		id, _ := body.Value(document.FieldID).(string)

		doc, err := s.Put(id, body)
		if err != nil {
			return i, fmt.Errorf("put document %d: %w", i, err)
		}

		revs, err := conflictRevs(body.Value(document.FieldConflicts))
		if err != nil {
			return i, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		if len(revs) > 0 {
			if err := s.SetConflicts(doc.ID, revs); err != nil {
				return i, fmt.Errorf("set conflicts on %s: %w", doc.ID, err)
			}
		}
	}
	return len(docs), nil
}

func conflictRevs(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("_conflicts must be a list, got %s", value.KindOf(v))
	}
	revs := make([]string, 0, len(list))
	for _, r := range list {
		s, ok := r.(string)
		if !ok {
			return nil, fmt.Errorf("_conflicts entries must be strings, got %s", value.KindOf(r))
		}
		revs = append(revs, s)
	}
	return revs, nil
}

// LoadInto reads the document file at path and stores its contents
func LoadInto(s storage.Store, path string) (int, error) {
	docs, err := LoadDocuments(path)
	if err != nil {
		return 0, err
	}
	return Store(s, docs)
}
