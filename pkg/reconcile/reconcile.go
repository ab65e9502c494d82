// Package reconcile decides whether a remote record must be created, updated or left
// alone so that it matches a desired state.
package reconcile

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ActionKind is the change a reconcile pass requires
type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionUpdate ActionKind = "update"
	ActionNoOp   ActionKind = "noop"
	ActionDelete ActionKind = "delete"
)

// Action is the outcome of Reconcile. Payload is the full desired record for create
// and update; the backend merges updates into the existing record.
type Action struct {
	Kind      ActionKind
	Payload   models.Record
	IDColumns []string
}

// Changed reports whether the action modifies the remote system
func (a Action) Changed() bool {
	return a.Kind != ActionNoOp
}

// Reconcile compares the desired state with the record found by the id columns.
// A nil existing record means the lookup found nothing.
func Reconcile(desired models.Record, idColumns []string, existing models.Record) Action {
	action := Action{IDColumns: idColumns}

	switch {
	case existing == nil:
		action.Kind = ActionCreate
		action.Payload = desired.Clone()
	case IsSuperset(existing, desired):
		action.Kind = ActionNoOp
	default:
		action.Kind = ActionUpdate
		action.Payload = desired.Clone()
	}

	return action
}

// ReconcileAbsent decides whether a record that should not exist must be deleted
func ReconcileAbsent(existing models.Record) Action {
	if existing == nil {
		return Action{Kind: ActionNoOp}
	}
	return Action{Kind: ActionDelete, Payload: models.Record{models.SysIDField: models.String(existing.SysID())}}
}

// IsSuperset reports whether every field of candidate is present in superset with an equal value
func IsSuperset(superset, candidate models.Record) bool {
	for field, want := range candidate {
		have, ok := superset[field]
		if !ok || !FieldsEqual(have, want) {
			return false
		}
	}
	return true
}

// Diff returns the sorted names of desired fields the existing record does not satisfy
func Diff(existing, desired models.Record) []string {
	fields := []string{}
	for field, want := range desired {
		have, ok := existing[field]
		if !ok || !FieldsEqual(have, want) {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	return fields
}

// FieldsEqual compares two values the way the backend stores them. Values of the same
// kind compare by payload. The backend returns every column as a string, so a string
// compares equal to a number or bool with the same printed form, and null compares
// equal to the empty string. It is looser than the kind-exact Value.Equal: desired
// {"impact": 2} against a stored "2" is a no-op, not an update.
func FieldsEqual(a, b models.Value) bool {
	if a.Kind() == b.Kind() {
		return a.Equal(b)
	}

	if a.IsEmpty() && b.IsEmpty() {
		return true
	}

	if a.Kind() == models.ValueKindString || b.Kind() == models.ValueKindString {
		if a.IsNull() || b.IsNull() {
			return false
		}
		return a.String() == b.String()
	}

	return false
}
