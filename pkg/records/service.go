// Package records reconciles and reads backend records in the friendly vocabulary.
package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/mapper"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/query"
	"github.com/Ramsey-B/fern/pkg/reconcile"
	"github.com/Ramsey-B/fern/pkg/table"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// TableAccess is the subset of the table client the service needs
type TableAccess interface {
	List(ctx context.Context, table string, opts table.ListOptions) ([]models.Record, error)
	Get(ctx context.Context, table, encodedQuery string, mustExist bool) (models.Record, error)
	Create(ctx context.Context, table string, payload models.Record, checkMode bool) (models.Record, error)
	Update(ctx context.Context, table, sysID string, payload models.Record, checkMode bool) (models.Record, error)
	Delete(ctx context.Context, table, sysID string, checkMode bool) error
}

// EnsureRequest describes the state a record should have
type EnsureRequest struct {
	Table   string        `json:"table" validate:"required,table_name"`
	Desired models.Record `json:"record" validate:"required"`
	// IDColumns identify the record when Desired has no sys_id
	IDColumns []string `json:"id_columns"`
	// RequiredOnCreate lists fields that must be set when the record is created
	RequiredOnCreate []string `json:"required_on_create"`
	CheckMode        bool     `json:"check_mode"`
}

// AbsentRequest describes a record that should not exist
type AbsentRequest struct {
	Table     string        `json:"table" validate:"required,table_name"`
	Match     models.Record `json:"match" validate:"required"`
	IDColumns []string      `json:"id_columns"`
	CheckMode bool          `json:"check_mode"`
}

// Result is the outcome of an ensure call
type Result struct {
	Changed bool                 `json:"changed"`
	Action  reconcile.ActionKind `json:"action"`
	Record  models.Record        `json:"record"`
	// Diff lists the fields that were created or changed
	Diff []string `json:"diff"`
}

// FindOptions narrows a find call
type FindOptions struct {
	Fields []string
	Limit  int
}

// Service reconciles records through the table API
type Service struct {
	tables   TableAccess
	mappings map[string]mapper.Table
	logger   ectologger.Logger
}

// NewService creates a record service. mappings holds the value mapping table of each
// backend table; tables without one pass values through.
func NewService(tables TableAccess, mappings map[string]mapper.Table, logger ectologger.Logger) *Service {
	if mappings == nil {
		mappings = map[string]mapper.Table{}
	}
	return &Service{
		tables:   tables,
		mappings: mappings,
		logger:   logger,
	}
}

// Mapper returns the value mapper of a table. Unknown values are logged as warnings.
func (s *Service) Mapper(ctx context.Context, tableName string) *mapper.Mapper {
	mapping, ok := s.mappings[tableName]
	if !ok {
		return nil
	}
	return mapper.New(mapping, mapper.WarnFunc(func(message string) {
		s.logger.WithContext(ctx).WithFields(map[string]any{"table": tableName}).Warn(message)
	}))
}

// CompileQuery compiles groups for a table, mapping friendly values to backend codes
func (s *Service) CompileQuery(ctx context.Context, tableName string, groups []query.Group) (string, error) {
	encoded, err := mapper.CompileQuery(groups, s.Mapper(ctx, tableName))
	if err != nil {
		if ferrors.IsQueryParseError(err) {
			metrics.QueryParseFailures.Inc()
			if e, ok := ferrors.AsError(err); ok {
				e.AddTable(tableName)
			}
		}
		return "", err
	}
	return encoded, nil
}

// Ensure makes the remote record match req.Desired
func (s *Service) Ensure(ctx context.Context, req EnsureRequest) (Result, error) {
	if _, err := validation.Validate(req); err != nil {
		return Result{}, ferrors.NewInvalidState(err.Error()).AddTable(req.Table)
	}

	m := s.Mapper(ctx, req.Table)
	desired := m.ToInternalRecord(req.Desired)

	existing, err := s.lookup(ctx, req.Table, req.IDColumns, desired, desired.SysID() != "")
	if err != nil {
		return Result{}, err
	}

	if len(req.RequiredOnCreate) > 0 {
		missing, err := reconcile.MissingFromParamsAndRemote(req.RequiredOnCreate, desired, existing)
		if err != nil {
			return Result{}, withTable(err, req.Table)
		}
		if len(missing) > 0 {
			return Result{}, ferrors.NewInvalidStatef("missing required fields: %s", strings.Join(missing, ", ")).AddTable(req.Table)
		}
	}

	action := reconcile.Reconcile(desired, req.IDColumns, existing)
	metrics.RecordReconcile(req.Table, string(action.Kind), req.CheckMode)

	result := Result{
		Changed: action.Changed(),
		Action:  action.Kind,
		Diff:    reconcile.Diff(existing, desired),
	}

	var record models.Record
	switch action.Kind {
	case reconcile.ActionCreate:
		record, err = s.tables.Create(ctx, req.Table, action.Payload, req.CheckMode)
	case reconcile.ActionUpdate:
		record, err = s.tables.Update(ctx, req.Table, existing.SysID(), action.Payload, req.CheckMode)
		if req.CheckMode && err == nil {
			merged := existing.Clone()
			for field, value := range record {
				merged[field] = value
			}
			record = merged
		}
	default:
		record = existing
	}
	if err != nil {
		return Result{}, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"table":      req.Table,
		"action":     action.Kind,
		"sys_id":     record.SysID(),
		"diff":       result.Diff,
		"check_mode": req.CheckMode,
	}).Infof("reconciled %s record", req.Table)

	result.Record = m.ToFriendlyRecord(record)
	return result, nil
}

// EnsureAbsent deletes the record matching req.Match if it exists
func (s *Service) EnsureAbsent(ctx context.Context, req AbsentRequest) (Result, error) {
	if _, err := validation.Validate(req); err != nil {
		return Result{}, ferrors.NewInvalidState(err.Error()).AddTable(req.Table)
	}

	m := s.Mapper(ctx, req.Table)
	match := m.ToInternalRecord(req.Match)

	existing, err := s.lookup(ctx, req.Table, req.IDColumns, match, false)
	if err != nil {
		return Result{}, err
	}

	action := reconcile.ReconcileAbsent(existing)
	metrics.RecordReconcile(req.Table, string(action.Kind), req.CheckMode)

	if action.Kind == reconcile.ActionDelete {
		if err := s.tables.Delete(ctx, req.Table, existing.SysID(), req.CheckMode); err != nil {
			return Result{}, err
		}
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"table":      req.Table,
			"sys_id":     existing.SysID(),
			"check_mode": req.CheckMode,
		}).Infof("removed %s record", req.Table)
	}

	return Result{
		Changed: action.Changed(),
		Action:  action.Kind,
		Record:  m.ToFriendlyRecord(existing),
		Diff:    []string{},
	}, nil
}

// lookup finds the existing record by sys_id or id columns. With mustExist, no match
// is a 404.
func (s *Service) lookup(ctx context.Context, tableName string, idColumns []string, desired models.Record, mustExist bool) (models.Record, error) {
	groups, err := reconcile.IDQuery(idColumns, desired)
	if err != nil {
		return nil, withTable(err, tableName)
	}

	encoded, err := query.Compile(groups)
	if err != nil {
		return nil, withTable(err, tableName)
	}

	return s.tables.Get(ctx, tableName, encoded, mustExist)
}

// Find lists the records matching groups, in the friendly vocabulary
func (s *Service) Find(ctx context.Context, tableName string, groups []query.Group, opts FindOptions) ([]models.Record, error) {
	encoded, err := s.CompileQuery(ctx, tableName, groups)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, tableName, encoded, opts)
}

// List lists the records matching an already encoded query, in the friendly vocabulary
func (s *Service) List(ctx context.Context, tableName, encodedQuery string, opts FindOptions) ([]models.Record, error) {
	if err := validation.ValidateValue(tableName, "required,table_name"); err != nil {
		return nil, ferrors.NewInvalidState(err.Error())
	}

	rows, err := s.tables.List(ctx, tableName, table.ListOptions{
		Query:  encodedQuery,
		Fields: opts.Fields,
		Limit:  opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", tableName, err)
	}

	m := s.Mapper(ctx, tableName)
	result := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		result = append(result, m.ToFriendlyRecord(row))
	}
	return result, nil
}

func withTable(err error, tableName string) error {
	if e, ok := ferrors.AsError(err); ok && e.Table == "" {
		e.AddTable(tableName)
	}
	return err
}
