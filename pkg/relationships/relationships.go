// Package relationships derives relationship group labels for configuration items from
// rows of the CI relationship table.
package relationships

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// GroupsField is the field Enhance adds to every record
const GroupsField = "relationship_groups"

var typeSeparators = regexp.MustCompile(`[\s:]`)

// Enhanced is a record together with its relationship group labels
type Enhanced struct {
	Record             models.Record
	RelationshipGroups []string
}

// MarshalJSON renders the record object with the labels under relationship_groups
func (e Enhanced) MarshalJSON() ([]byte, error) {
	out := e.Record.ToMap()
	groups := e.RelationshipGroups
	if groups == nil {
		groups = []string{}
	}
	out[GroupsField] = groups
	return json.Marshal(out)
}

// SplitType normalizes a relationship type such as "Depends on::Used by" and returns
// its parent and child halves. An empty type yields two empty halves.
func SplitType(typeName string) (parent, child string) {
	if typeName == "" {
		typeName = "__"
	}
	normalized := typeSeparators.ReplaceAllString(typeName, "_")
	parent, child, _ = strings.Cut(normalized, "__")
	return parent, child
}

type labelSet map[string]map[string]struct{}

func (s labelSet) add(sysID, name, half, class string) {
	if sysID == "" || name == "" || half == "" || class == "" {
		return
	}
	if s[sysID] == nil {
		s[sysID] = map[string]struct{}{}
	}
	s[sysID][name+"_"+half] = struct{}{}
}

func (s labelSet) sorted(sysID string) []string {
	labels := make([]string, 0, len(s[sysID]))
	for label := range s[sysID] {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Group builds the label set for every sys_id referenced by the relationships.
// The parent gets the child's name with the child half of the type and the child gets
// the parent's name with the parent half.
func Group(rels []models.Relationship) map[string][]string {
	set := labelSet{}
	for _, rel := range rels {
		parentHalf, childHalf := SplitType(rel.TypeName)
		set.add(rel.Parent.SysID, rel.Child.Name, childHalf, rel.Child.Class)
		set.add(rel.Child.SysID, rel.Parent.Name, parentHalf, rel.Parent.Class)
	}

	groups := make(map[string][]string, len(set))
	for sysID := range set {
		groups[sysID] = set.sorted(sysID)
	}
	return groups
}

// Enhance attaches to each record the labels keyed by its own sys_id
func Enhance(records []models.Record, rels []models.Relationship) []Enhanced {
	groups := Group(rels)

	result := make([]Enhanced, 0, len(records))
	for _, record := range records {
		labels, ok := groups[record.SysID()]
		if !ok {
			labels = []string{}
		}
		result = append(result, Enhanced{
			Record:             record,
			RelationshipGroups: labels,
		})
	}
	return result
}
