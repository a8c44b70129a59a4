package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePrefixedIDs(t *testing.T) {
	t.Parallel()

	gen := New()

	cases := []struct {
		name   string
		prefix string
		fn     func() (string, error)
	}{
		{"instance", "dbi-", gen.GenerateInstanceID},
		{"cluster", "cls-", gen.GenerateClusterID},
		{"backup", "bak-", gen.GenerateBackupID},
		{"shard", "shd-", gen.GenerateShardID},
		{"config group", "cfg-", gen.GenerateConfigGroupID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := tc.fn()
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(id, tc.prefix), "id %q should have prefix %q", id, tc.prefix)
		})
	}
}

func TestGenerateIDMonotonic(t *testing.T) {
	t.Parallel()

	gen := New()

	prev, err := gen.GenerateID()
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		id, err := gen.GenerateID()
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerateIDUnique(t *testing.T) {
	t.Parallel()

	gen := New()
	seen := make(map[uint64]struct{})
	for i := 0; i < 1000; i++ {
		id, err := gen.GenerateID()
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestDefaultGenerator(t *testing.T) {
	t.Parallel()

	assert.Same(t, DefaultGenerator(), DefaultGenerator())

	id, err := GenerateInstanceID()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "dbi-"))
}
