package relationships

import (
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/query"
)

// TableName is the CI relationship join table
const TableName = "cmdb_rel_ci"

const (
	FieldSysID       = "sys_id"
	FieldType        = "type.name"
	FieldParentSysID = "parent.sys_id"
	FieldParentName  = "parent.name"
	FieldParentClass = "parent.sys_class_name"
	FieldChildSysID  = "child.sys_id"
	FieldChildName   = "child.name"
	FieldChildClass  = "child.sys_class_name"
)

// Fields is the dot-walk projection requested from the relationship table
var Fields = []string{
	FieldSysID,
	FieldType,
	FieldParentSysID,
	FieldParentName,
	FieldParentClass,
	FieldChildSysID,
	FieldChildName,
	FieldChildClass,
}

// FetchQuery selects every relationship in which one of the CIs is parent or child
func FetchQuery(sysIDs []string) []query.Group {
	ids := strings.Join(sysIDs, ",")
	return []query.Group{
		{query.Is(FieldParentSysID, query.OpIn, ids)},
		{query.Is(FieldChildSysID, query.OpIn, ids)},
	}
}

// DecodeRelationship reads a row of the dot-walk projection
func DecodeRelationship(record models.Record) models.Relationship {
	return models.Relationship{
		SysID:    record.GetString(FieldSysID),
		TypeName: record.GetString(FieldType),
		Parent: models.RelationshipItem{
			SysID: record.GetString(FieldParentSysID),
			Name:  record.GetString(FieldParentName),
			Class: record.GetString(FieldParentClass),
		},
		Child: models.RelationshipItem{
			SysID: record.GetString(FieldChildSysID),
			Name:  record.GetString(FieldChildName),
			Class: record.GetString(FieldChildClass),
		},
	}
}

// DecodeRelationships decodes every row
func DecodeRelationships(records []models.Record) []models.Relationship {
	rels := make([]models.Relationship, 0, len(records))
	for _, record := range records {
		rels = append(rels, DecodeRelationship(record))
	}
	return rels
}
