package poller

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ramsey-B/fern/pkg/query"
)

// LoadTables builds the poll configuration of each named table. When queryDir is set,
// <queryDir>/<table>.yaml, if present, holds the table's base query as a YAML list of groups.
func LoadTables(names []string, queryDir string) ([]TableConfig, error) {
	tables := make([]TableConfig, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		tbl := TableConfig{Name: name}
		if queryDir != "" {
			data, err := os.ReadFile(filepath.Join(queryDir, name+".yaml"))
			switch {
			case errors.Is(err, fs.ErrNotExist):
			case err != nil:
				return nil, fmt.Errorf("failed to read query for table %s: %w", name, err)
			default:
				groups, err := query.ParseYAML(data)
				if err != nil {
					return nil, fmt.Errorf("invalid query for table %s: %w", name, err)
				}
				tbl.Query = groups
			}
		}
		tables = append(tables, tbl)
	}
	return tables, nil
}
