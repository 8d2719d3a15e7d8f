package parsers

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

// LoadFile reads and parses a declaration file
func LoadFile(path string) (*Declaration, error) {
	parser, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	decl, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return decl, nil
}

// LoadGraph reads a declaration file and builds its graph
func LoadGraph(path string) (*model.Graph, *Declaration, error) {
	decl, err := LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	g, err := BuildGraph(decl)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, decl, nil
}

// BuildGraph builds a graph through the model operations: every node with
// its properties first, then attachments and relationships, so references
// may point forward. All errors are reported together.
func BuildGraph(decl *Declaration) (*model.Graph, error) {
	g := model.New(decl.Metadata.Name)
	ids := make([]model.NodeID, len(decl.Components))

	var errs []error
	for i, c := range decl.Components {
		id, err := g.AddNode(model.Kind(c.Kind), c.Name, namespaceOf(decl, c.Namespace))
		if err != nil {
			errs = append(errs, fmt.Errorf("component %s %q: %w", c.Kind, c.Name, err))
			continue
		}
		ids[i] = id
		for _, key := range model.SortedKeys(c.Properties) {
			if err := g.SetProperty(id, key, c.Properties[key]); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for i, c := range decl.Components {
		ns := namespaceOf(decl, c.Namespace)
		for _, a := range c.Attachments {
			kind, err := model.ParseKind(a.Kind)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			ref := model.NodeRef{Kind: kind, Namespace: defaultString(a.Namespace, ns), Name: a.Name}
			if err := g.Attach(ids[i], ref); err != nil {
				errs = append(errs, err)
			}
		}
		for _, r := range c.Relationships {
			kind, err := model.ParseKind(r.Kind)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			relType, err := model.ParseRelationType(r.Type)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			to := model.NewNodeID(kind, defaultString(r.Namespace, ns), r.Name)
			if err := g.AddRelationship(ids[i], to, relType); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	logger.Debug("Built graph from declaration",
		zap.String("name", g.Name),
		zap.Int("nodes", g.Len()))
	return g, nil
}

func namespaceOf(decl *Declaration, ns string) string {
	return defaultString(ns, decl.Metadata.Namespace)
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
