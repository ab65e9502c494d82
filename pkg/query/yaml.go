package query

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML sequence of mappings into groups, keeping the
// document's key order so the encoded query lists fields as written.
//
//	- state: "= new"
//	  short_description: "LIKE SAP"
//	- priority: "<= 2"
func ParseYAML(data []byte) ([]Group, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse query yaml: %w", err)
	}

	if root.Kind == 0 {
		return nil, nil
	}

	node := &root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil
		}
		node = node.Content[0]
	}

	return groupsFromNode(node)
}

func groupsFromNode(node *yaml.Node) ([]Group, error) {
	switch node.Kind {
	case yaml.SequenceNode:
		groups := make([]Group, 0, len(node.Content))
		for i, item := range node.Content {
			group, err := groupFromNode(item)
			if err != nil {
				return nil, fmt.Errorf("query group %d: %w", i, err)
			}
			groups = append(groups, group)
		}
		return groups, nil
	case yaml.MappingNode:
		// a single mapping is shorthand for a one-group query
		group, err := groupFromNode(node)
		if err != nil {
			return nil, err
		}
		return []Group{group}, nil
	default:
		return nil, fmt.Errorf("line %d: query must be a list of mappings", node.Line)
	}
}

func groupFromNode(node *yaml.Node) (Group, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: query group must be a mapping", node.Line)
	}

	group := make(Group, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: condition for column '%s' must be a string", value.Line, key.Value)
		}
		group = append(group, Clause{Field: key.Value, Expr: value.Value})
	}
	return group, nil
}
