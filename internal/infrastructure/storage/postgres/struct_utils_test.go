package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"numerus/internal/core/entity"
	"numerus/internal/domain/workspace"
)

// The workspace repo builds its SELECT list from these columns; this pins
// the full set, system columns included.
func TestExtractDBColumns_Workspace(t *testing.T) {
	cols := ExtractDBColumns[workspace.Workspace]()

	assert.ElementsMatch(t, []string{
		"id", "deletion_mark", "version", "attributes", "_deleted_at", "_txid",
		"code", "name", "parent_id", "is_folder",
		"company_name", "allow_manual_numbers", "draft_preview_enabled",
	}, cols)
}

func TestExtractDBColumns_ReturnsCopy(t *testing.T) {
	first := ExtractDBColumns[workspace.Workspace]()
	first[0] = "mutated"

	second := ExtractDBColumns[workspace.Workspace]()
	assert.NotContains(t, second, "mutated")
}

func TestStructToMap_ReachesThroughEmbedding(t *testing.T) {
	now := time.Now().UTC()

	ws := workspace.NewWorkspace("MAIN", "Main Office", "Acme Trading Ltd")
	ws.DeletionMark = true
	ws.Version = 5
	ws.TxID = 12345
	ws.DeletedAt = &now

	m := StructToMap(ws)

	assert.Equal(t, ws.ID, m["id"])
	assert.Equal(t, true, m["deletion_mark"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, int64(12345), m["_txid"])
	assert.Equal(t, &now, m["_deleted_at"])
	assert.Equal(t, "MAIN", m["code"])
	assert.Equal(t, "Acme Trading Ltd", m["company_name"])
	assert.Equal(t, true, m["allow_manual_numbers"])
}

func TestStructToMap_SkipsUntaggedAndIgnored(t *testing.T) {
	type row struct {
		entity.BaseEntity
		Kept    string `db:"kept"`
		Ignored string `db:"-"`
		NoTag   string
	}

	m := StructToMap(row{Kept: "yes", Ignored: "no", NoTag: "no"})

	require.Contains(t, m, "kept")
	assert.NotContains(t, m, "-")
	assert.NotContains(t, m, "Ignored")
	assert.NotContains(t, m, "NoTag")
}

func TestStructToMap_NilAndNonStruct(t *testing.T) {
	var ws *workspace.Workspace
	assert.Nil(t, StructToMap(ws))
	assert.Nil(t, StructToMap(42))
}
