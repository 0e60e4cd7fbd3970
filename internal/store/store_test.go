package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetThenGet(t *testing.T) {
	st, err := Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Set("digest1", "cfgA", []byte("payload")))
	got, ok := st.Get("digest1", "cfgA")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)
}

func TestGetMissesOnConfigMismatch(t *testing.T) {
	st, err := Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Set("digest1", "cfgA", []byte("payload")))
	_, ok := st.Get("digest1", "cfgB")
	assert.False(t, ok)
}

func TestSetOverwritesExisting(t *testing.T) {
	st, err := Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Set("digest1", "cfgA", []byte("first")))
	require.NoError(t, st.Set("digest1", "cfgA", []byte("second")))
	got, ok := st.Get("digest1", "cfgA")
	require.True(t, ok)
	assert.Equal(t, []byte("second"), got)
}

func TestEvictRemovesNothingWhenFresh(t *testing.T) {
	st, err := Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Set("digest1", "cfgA", []byte("payload")))
	n, err := st.Evict(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
