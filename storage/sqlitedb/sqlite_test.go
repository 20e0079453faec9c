package sqlitedb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/refcache/storage"
	"goa.design/refcache/storage/storagetest"
)

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		dir := t.TempDir()
		s, err := Open(filepath.Join(dir, "refcache.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
