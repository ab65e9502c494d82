package reconcile

import (
	"fmt"
	"sort"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/query"
)

// MissingFromParamsAndRemote returns the required fields that are empty both in the
// caller's parameters and in the existing remote record. A field counts as empty when it
// is absent, null or the empty string. remote may be nil when no record exists yet.
//
// Fails with InvalidState when a required field given in params is not a column of the
// remote record, or when a param/remote pair holds something other than a string or null.
func MissingFromParamsAndRemote(required []string, params, remote models.Record) ([]string, error) {
	if remote != nil {
		var unknown []string
		for _, field := range required {
			if _, inParams := params[field]; !inParams {
				continue
			}
			if _, inRemote := remote[field]; !inRemote {
				unknown = append(unknown, field)
			}
		}
		if len(unknown) > 0 {
			return nil, ferrors.NewInvalidStatef("%v is not a subset of %v", unknown, remote.Keys())
		}
	}

	missing := []string{}
	for _, field := range required {
		param, inParams := params[field]

		if remote == nil {
			if !inParams || param.IsEmpty() {
				missing = append(missing, field)
			}
			continue
		}

		current := remote[field]
		if (inParams && !isStringOrNull(param)) || !isStringOrNull(current) {
			return nil, ferrors.NewInvalidState("value must be str or None").AddField(field)
		}

		if (!inParams || param.IsEmpty()) && current.IsEmpty() {
			missing = append(missing, field)
		}
	}

	return missing, nil
}

func isStringOrNull(v models.Value) bool {
	kind := v.Kind()
	return kind == models.ValueKindString || kind == models.ValueKindNull
}

// IDQuery builds the lookup that finds the existing record for a desired state.
// A sys_id in desired wins over the id columns.
func IDQuery(idColumns []string, desired models.Record) ([]query.Group, error) {
	if sysID := desired.SysID(); sysID != "" {
		return []query.Group{{query.Equals(models.SysIDField, sysID)}}, nil
	}

	if len(idColumns) == 0 {
		return nil, ferrors.NewInvalidState("no sys_id and no id columns to look up the record by")
	}

	columns := append([]string(nil), idColumns...)
	sort.Strings(columns)

	group := make(query.Group, 0, len(columns))
	for _, column := range columns {
		value, ok := desired[column]
		if !ok || value.IsNull() {
			return nil, ferrors.NewInvalidState(fmt.Sprintf("id column %s has no value", column)).AddField(column)
		}
		group = append(group, query.Equals(column, value.String()))
	}

	return []query.Group{group}, nil
}
