package catalog_repo

import (
	"testing"

	"numerus/internal/domain/filter"
)

func TestApplyAdvancedFilters_Operators(t *testing.T) {
	repo := NewWorkspaceRepo()

	tests := []struct {
		name     string
		item     filter.Item
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "Greater",
			item:     filter.Item{Field: "version", Operator: filter.Greater, Value: 10},
			wantSQL:  "SELECT id FROM workspaces WHERE version > $1",
			wantArgs: []any{10},
		},
		{
			name:     "Less",
			item:     filter.Item{Field: "version", Operator: filter.Less, Value: 5},
			wantSQL:  "SELECT id FROM workspaces WHERE version < $1",
			wantArgs: []any{5},
		},
		{
			name:     "Contains",
			item:     filter.Item{Field: "company_name", Operator: filter.Contains, Value: "Acme"},
			wantSQL:  "SELECT id FROM workspaces WHERE company_name ILIKE $1",
			wantArgs: []any{"%Acme%"},
		},
		{
			name:     "Equal on numbering switch",
			item:     filter.Item{Field: "allow_manual_numbers", Operator: filter.Equal, Value: true},
			wantSQL:  "SELECT id FROM workspaces WHERE allow_manual_numbers = $1",
			wantArgs: []any{true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			baseQ := repo.Builder().Select("id").From(workspaceTable)
			q, err := repo.applyAdvancedFilters(baseQ, []filter.Item{tt.item})
			if err != nil {
				t.Fatalf("applyAdvancedFilters failed: %v", err)
			}

			sql, args, err := q.ToSql()
			if err != nil {
				t.Fatalf("ToSql failed: %v", err)
			}

			if sql != tt.wantSQL {
				t.Errorf("SQL mismatch\nwant: %s\ngot:  %s", tt.wantSQL, sql)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("Args count mismatch\nwant: %d\ngot:  %d", len(tt.wantArgs), len(args))
			}
			if args[0] != tt.wantArgs[0] {
				t.Errorf("Args mismatch\nwant: %v\ngot:  %v", tt.wantArgs[0], args[0])
			}
		})
	}
}

func TestApplyAdvancedFilters_RejectsUnknownColumn(t *testing.T) {
	repo := NewWorkspaceRepo()

	baseQ := repo.Builder().Select("id").From(workspaceTable)
	_, err := repo.applyAdvancedFilters(baseQ, []filter.Item{
		{Field: "password; DROP TABLE workspaces", Operator: filter.Equal, Value: "x"},
	})
	if err == nil {
		t.Fatal("expected error for column outside the whitelist")
	}
}

func TestParseOrderBy(t *testing.T) {
	repo := NewWorkspaceRepo()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "name ASC"},
		{in: "code", want: "code ASC"},
		{in: "+code", want: "code ASC"},
		{in: "-version", want: "version DESC"},
		{in: "no_such_column", wantErr: true},
		{in: "-", wantErr: true},
	}

	for _, tt := range tests {
		got, err := repo.parseOrderBy(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseOrderBy(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseOrderBy(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseOrderBy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSelectColumnsMatchSchema(t *testing.T) {
	repo := NewWorkspaceRepo()

	// The columns the repo selects come from the entity's db tags; the
	// numbering switches must be among them or workspace settings would
	// silently load as zero values.
	for _, col := range []string{"id", "code", "name", "company_name", "allow_manual_numbers", "draft_preview_enabled"} {
		found := false
		for _, have := range repo.selectCols {
			if have == col {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("column %q missing from select columns %v", col, repo.selectCols)
		}
	}
}
