package mapper

var priorityPairs = []Pair{
	{Internal: "1", Friendly: "critical"},
	{Internal: "2", Friendly: "high"},
	{Internal: "3", Friendly: "moderate"},
	{Internal: "4", Friendly: "low"},
	{Internal: "5", Friendly: "planning"},
}

var impactPairs = []Pair{
	{Internal: "1", Friendly: "high"},
	{Internal: "2", Friendly: "medium"},
	{Internal: "3", Friendly: "low"},
}

// IncidentTable maps incident choice fields
var IncidentTable = Table{
	"state": {
		{Internal: "1", Friendly: "new"},
		{Internal: "2", Friendly: "in_progress"},
		{Internal: "3", Friendly: "on_hold"},
		{Internal: "6", Friendly: "resolved"},
		{Internal: "7", Friendly: "closed"},
		{Internal: "8", Friendly: "canceled"},
	},
	"hold_reason": {
		{Internal: "", Friendly: ""},
		{Internal: "1", Friendly: "awaiting_caller"},
		{Internal: "3", Friendly: "awaiting_problem"},
		{Internal: "4", Friendly: "awaiting_vendor"},
		{Internal: "5", Friendly: "awaiting_change"},
	},
	"impact":   impactPairs,
	"urgency":  impactPairs,
	"priority": priorityPairs,
}

// ProblemTable maps problem choice fields
var ProblemTable = Table{
	"state": {
		{Internal: "101", Friendly: "new"},
		{Internal: "102", Friendly: "assess"},
		{Internal: "103", Friendly: "root_cause_analysis"},
		{Internal: "104", Friendly: "fix_in_progress"},
		{Internal: "106", Friendly: "resolved"},
		{Internal: "107", Friendly: "closed"},
	},
	"impact":   impactPairs,
	"urgency":  impactPairs,
	"priority": priorityPairs,
}

// ChangeRequestTable maps change request choice fields
var ChangeRequestTable = Table{
	"state": {
		{Internal: "-5", Friendly: "new"},
		{Internal: "-4", Friendly: "assess"},
		{Internal: "-3", Friendly: "authorize"},
		{Internal: "-2", Friendly: "scheduled"},
		{Internal: "-1", Friendly: "implement"},
		{Internal: "0", Friendly: "review"},
		{Internal: "3", Friendly: "closed"},
		{Internal: "4", Friendly: "canceled"},
	},
	"risk": {
		{Internal: "2", Friendly: "high"},
		{Internal: "3", Friendly: "moderate"},
		{Internal: "4", Friendly: "low"},
	},
	"impact":   impactPairs,
	"urgency":  impactPairs,
	"priority": priorityPairs,
}

// DefaultTables are the mapping tables used for the backend tables fern knows about
func DefaultTables() map[string]Table {
	return map[string]Table{
		"incident":       IncidentTable,
		"problem":        ProblemTable,
		"change_request": ChangeRequestTable,
	}
}
