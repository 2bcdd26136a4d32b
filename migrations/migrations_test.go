package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_ParsesAsMigrationSource(t *testing.T) {
	src, err := iofs.New(FS, ".")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)
}

func TestFS_EveryUpHasDown(t *testing.T) {
	names, err := fs.Glob(FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, up := range names {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(FS, down)
		assert.NoError(t, err, "missing %s", down)
	}
}

func TestFS_UniqueConstraintsPresent(t *testing.T) {
	// The workflow relies on these for atomic create-or-return and one-shot results.
	want := map[string]string{
		"000003_encounter.up.sql":  "medical_ticket_visit_id_key",
		"000004_indication.up.sql": "imaging_result_indication_id_key",
	}
	for file, constraint := range want {
		b, err := fs.ReadFile(FS, file)
		require.NoError(t, err)
		assert.Contains(t, string(b), constraint)
	}
	b, err := fs.ReadFile(FS, "000004_indication.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "lab_test_result_indication_id_key")
}
