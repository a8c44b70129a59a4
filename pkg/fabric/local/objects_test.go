package local

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/jdp/pkg/fabric"
)

func TestObjectStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := NewObjectStore(t.TempDir())
	require.NoError(t, err)

	t.Run("manifest 头写入后能读回", func(t *testing.T) {
		require.NoError(t, store.PutObject(ctx, "database_backups", "bak-1.xbstream.gz.enc",
			[]byte("manifest"), map[string]string{fabric.ManifestHeader: "database_segments/bak-1"}))

		info, err := store.HeadObject(ctx, "database_backups", "bak-1.xbstream.gz.enc")
		require.NoError(t, err)
		container, prefix, ok := fabric.ManifestTarget(info)
		require.True(t, ok)
		assert.Equal(t, "database_segments", container)
		assert.Equal(t, "bak-1", prefix)
	})

	t.Run("按前缀列出 segment", func(t *testing.T) {
		require.NoError(t, store.PutObject(ctx, "database_segments", "bak-1/00000001", []byte("a"), nil))
		require.NoError(t, store.PutObject(ctx, "database_segments", "bak-1/00000002", []byte("b"), nil))
		require.NoError(t, store.PutObject(ctx, "database_segments", "bak-2/00000001", []byte("c"), nil))

		segments, err := store.GetContainer(ctx, "database_segments", "bak-1")
		require.NoError(t, err)
		require.Len(t, segments, 2)
		assert.Equal(t, "bak-1/00000001", segments[0].Key)
	})

	t.Run("删除后 Head 返回 NotFound", func(t *testing.T) {
		require.NoError(t, store.PutObject(ctx, "database_backups", "bak-gone", []byte("x"), nil))
		require.NoError(t, store.DeleteObject(ctx, "database_backups", "bak-gone"))

		_, err := store.HeadObject(ctx, "database_backups", "bak-gone")
		assert.True(t, fabric.IsNotFound(err))
		assert.True(t, fabric.IsNotFound(store.DeleteObject(ctx, "database_backups", "bak-gone")))
	})

	t.Run("空容器列表为空", func(t *testing.T) {
		objects, err := store.GetContainer(ctx, "no_such_container", "")
		require.NoError(t, err)
		assert.Empty(t, objects)
	})
}

func TestLocalDNS(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dns_entries")

	dns, err := NewDNS(path, "jdp.local.")
	require.NoError(t, err)
	assert.Equal(t, "dbi-1.jdp.local", dns.DetermineHostname("dbi-1"))

	require.NoError(t, dns.CreateInstanceEntry(ctx, "dbi-1", "10.0.0.9"))
	require.NoError(t, dns.CreateInstanceEntry(ctx, "dbi-2", "10.0.0.10"))

	// 重新加载后记录仍在
	reloaded, err := NewDNS(path, "jdp.local.")
	require.NoError(t, err)
	require.NoError(t, reloaded.DeleteInstanceEntry(ctx, "dbi-1"))
	require.NoError(t, reloaded.DeleteInstanceEntry(ctx, "dbi-missing"))

	final, err := NewDNS(path, "jdp.local.")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"dbi-2": "10.0.0.10"}, final.entries)
}
