package models

// RelationshipItem is one side of a CI relationship
type RelationshipItem struct {
	SysID string `json:"sys_id"`
	Name  string `json:"name"`
	Class string `json:"sys_class_name"`
}

// Relationship is a row of the CI relationship join table projected with dot-walked fields
type Relationship struct {
	SysID    string           `json:"sys_id"`
	TypeName string           `json:"type_name"`
	Parent   RelationshipItem `json:"parent"`
	Child    RelationshipItem `json:"child"`
}
