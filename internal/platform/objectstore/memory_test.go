package objectstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/pkg/platform/sentinel"
)

func TestMemory_PutAndPresign(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	url, err := m.Put(ctx, "org-1/license.pdf", strings.NewReader("%PDF"), 4, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "memory://documents/org-1/license.pdf", url)

	key, ok := m.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, "org-1/license.pdf", key)

	data, ct, ok := m.Get(key)
	require.True(t, ok)
	assert.Equal(t, "%PDF", string(data))
	assert.Equal(t, "application/pdf", ct)

	signed, err := m.PresignGet(ctx, key)
	require.NoError(t, err)
	assert.Contains(t, signed, key)

	require.NoError(t, m.Remove(ctx, key))
	_, err = m.PresignGet(ctx, key)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemory_SizeMismatch(t *testing.T) {
	_, err := NewMemory().Put(context.Background(), "k", strings.NewReader("abc"), 10, "application/pdf")
	assert.Error(t, err)
}

func TestKeyFromURL(t *testing.T) {
	_, ok := keyFromURL("https://cdn/bucket", "https://elsewhere/bucket/k")
	assert.False(t, ok)
	_, ok = keyFromURL("https://cdn/bucket", "https://cdn/bucket/")
	assert.False(t, ok)
}
