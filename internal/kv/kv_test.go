package kv

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/suPer8Hu/ai-debate/internal/config"
)

func openTestGorm(t *testing.T) *GormStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	s, err := NewGormStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemory(),
		"gorm":   openTestGorm(t),
	}
}

func TestStore_GetSetRemove(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "a", []byte("one")))
			got, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), got)

			// overwrite: last writer wins
			require.NoError(t, s.Set(ctx, "a", []byte("two")))
			got, err = s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), got)

			require.NoError(t, s.Remove(ctx, "a"))
			_, err = s.Get(ctx, "a")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Remove(ctx, "a"), "removing a missing key is not an error")
		})
	}
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	v := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", v))
	v[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestOpen(t *testing.T) {
	s, err := Open(config.Config{StateBackend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	path := t.TempDir() + "/nested/state.db"
	s, err = Open(config.Config{StateBackend: "sqlite", StatePath: path})
	require.NoError(t, err)
	gs, ok := s.(*GormStore)
	require.True(t, ok)
	require.NoError(t, gs.Set(context.Background(), "k", []byte("v")))
	require.NoError(t, gs.Close())

	// reopening the same file sees the value
	s, err = Open(config.Config{StateBackend: "sqlite", StatePath: path})
	require.NoError(t, err)
	got, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
	require.NoError(t, s.(Closer).Close())

	_, err = Open(config.Config{StateBackend: "etcd"})
	require.Error(t, err)
}
