package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dhishan/family-expense-tracker/internal/storage"
	"github.com/dhishan/family-expense-tracker/internal/storage/sqldoc"
	"github.com/dhishan/family-expense-tracker/internal/storage/storagetest"
)

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStore: func() storage.Store {
			s, err := New(filepath.Join(t.TempDir(), "docs.db"))
			require.NoError(t, err)
			return s
		},
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "docs.db")

	s, err := New(path)
	require.NoError(t, err)
	_, err = s.Set(ctx, storage.Families, "f1", storage.Fields{"name": "Smiths", "beneficiary_labels": map[string]any{"family": "Entire Family", "u1": "Ann"}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	// Updating a map field replaces it rather than merging keys.
	require.NoError(t, s.Update(ctx, storage.Families, "f1", storage.Fields{"beneficiary_labels": map[string]any{"family": "Everyone"}}))
	doc, err := s.Get(ctx, storage.Families, "f1")
	require.NoError(t, err)
	assert.Equal(t, "Smiths", doc.Fields["name"])
	assert.Equal(t, map[string]any{"family": "Everyone"}, doc.Fields["beneficiary_labels"])
}

func TestSelectStatement(t *testing.T) {
	q, err := storage.From(storage.Notifications).
		Where("user_id", storage.Eq, "u1").
		Where("read", storage.Eq, false).
		OrderBy("created_at", storage.Desc).
		WithLimit(50).
		Prepare()
	require.NoError(t, err)

	stmt := sqldoc.Select(dialect{}, q)
	assert.Equal(t, "SELECT id, data FROM documents WHERE collection = ? AND "+
		"(json_type(data, '$.user_id') = 'text' AND json_extract(data, '$.user_id') = ?) AND "+
		"(json_type(data, '$.read') IN ('true', 'false') AND json_extract(data, '$.read') = ?) "+
		"ORDER BY json_extract(data, '$.created_at') DESC, id ASC LIMIT 50 OFFSET 0", stmt.SQL)
	assert.Equal(t, []any{"notifications", "u1", 0}, stmt.Args)
}
