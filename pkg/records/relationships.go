package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/query"
	"github.com/Ramsey-B/fern/pkg/relationships"
	"github.com/Ramsey-B/fern/pkg/table"
)

// DefaultCITable is the base configuration item table
const DefaultCITable = "cmdb_ci"

// Enhance adds relationship group labels to configuration items
func (s *Service) Enhance(ctx context.Context, cis []models.Record) ([]relationships.Enhanced, error) {
	sysIDs := make([]string, 0, len(cis))
	for _, ci := range cis {
		if id := ci.SysID(); id != "" {
			sysIDs = append(sysIDs, id)
		}
	}

	if len(sysIDs) == 0 {
		return relationships.Enhance(cis, nil), nil
	}

	encoded, err := query.Compile(relationships.FetchQuery(sysIDs))
	if err != nil {
		return nil, err
	}

	rows, err := s.tables.List(ctx, relationships.TableName, table.ListOptions{
		Query:  encoded,
		Fields: relationships.Fields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"cis":           len(cis),
		"relationships": len(rows),
	}).Debug("grouping relationships")

	return relationships.Enhance(cis, relationships.DecodeRelationships(rows)), nil
}

// EnhanceByIDs loads configuration items by sys_id from ciTable and enhances them
func (s *Service) EnhanceByIDs(ctx context.Context, ciTable string, sysIDs []string) ([]relationships.Enhanced, error) {
	if ciTable == "" {
		ciTable = DefaultCITable
	}
	if len(sysIDs) == 0 {
		return []relationships.Enhanced{}, nil
	}

	encoded, err := query.Compile([]query.Group{
		{query.Is(models.SysIDField, query.OpIn, strings.Join(sysIDs, ","))},
	})
	if err != nil {
		return nil, err
	}

	cis, err := s.tables.List(ctx, ciTable, table.ListOptions{Query: encoded})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", ciTable, err)
	}

	return s.Enhance(ctx, cis)
}
