package kv

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "conversation:b:messages", []byte(`[1]`)))
	require.NoError(t, s.Set(ctx, "conversation:a:messages", []byte(`[2]`)))
	require.NoError(t, s.Set(ctx, "personas:custom", []byte(`{}`)))

	got, err := s.Get(ctx, "conversation:a:messages")
	require.NoError(t, err)
	assert.Equal(t, `[2]`, string(got))

	require.NoError(t, s.Set(ctx, "conversation:a:messages", []byte(`[3]`)))
	got, err = s.Get(ctx, "conversation:a:messages")
	require.NoError(t, err)
	assert.Equal(t, `[3]`, string(got))

	keys, err := s.Keys(ctx, "conversation:")
	require.NoError(t, err)
	assert.Equal(t, []string{"conversation:a:messages", "conversation:b:messages"}, keys)

	require.NoError(t, s.Delete(ctx, "conversation:a:messages"))
	require.NoError(t, s.Delete(ctx, "conversation:a:messages"))
	_, err = s.Get(ctx, "conversation:a:messages")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mentor.db"))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var out []string
	found, err := GetJSON(ctx, s, "tags", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, s, "tags", []string{"focus", "health"}))
	found, err = GetJSON(ctx, s, "tags", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"focus", "health"}, out)

	require.NoError(t, s.Set(ctx, "broken", []byte("{")))
	_, err = GetJSON(ctx, s, "broken", &out)
	assert.Error(t, err)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestBackendSelection(t *testing.T) {
	assert.Equal(t, "memory", Backend(Options{}))
	assert.Equal(t, "sqlite", Backend(Options{SQLitePath: "mentor.db"}))
	assert.Equal(t, "postgres", Backend(Options{DatabaseURL: "postgres://localhost/mentor", SQLitePath: "x"}))

	s, err := NewStore(context.Background(), Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}

func TestKeyLockerSerializesPerKey(t *testing.T) {
	locker := NewKeyLocker()
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, SetJSON(ctx, s, "counter", 0))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("counter")
			defer unlock()
			var n int
			_, _ = GetJSON(ctx, s, "counter", &n)
			_ = SetJSON(ctx, s, "counter", n+1)
		}()
	}
	wg.Wait()

	var n int
	_, err := GetJSON(ctx, s, "counter", &n)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.Equal(t, 0, locker.size())
}

func TestKeyLockerIndependentKeys(t *testing.T) {
	locker := NewKeyLocker()
	unlockA := locker.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locker.Lock("b")
		unlock()
		close(done)
	}()
	<-done
}

func TestPostgresKeysUseByteOrder(t *testing.T) {
	assert.Contains(t, postgresKeysQuery, `ORDER BY key COLLATE "C"`)
}

func TestMemoryStoreKeysByteOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, k := range []string{"memory:b:items", "memory:B:items", "memory:_:items", "memory:a:items"} {
		require.NoError(t, s.Set(ctx, k, []byte(`[]`)))
	}

	keys, err := s.Keys(ctx, "memory:")
	require.NoError(t, err)
	assert.Equal(t, []string{"memory:B:items", "memory:_:items", "memory:a:items", "memory:b:items"}, keys)
}
