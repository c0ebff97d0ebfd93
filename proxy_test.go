package htm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyOfProxyFormsATree(t *testing.T) {
	root, err := NewSDR([]int{16})
	require.NoError(t, err)
	require.NoError(t, root.SetFlatSparse([]int{3, 5}))

	mid, err := NewProxy(root, []int{4, 4})
	require.NoError(t, err)

	leaf, err := NewProxy(mid, []int{2, 8})
	require.NoError(t, err)

	fs, err := leaf.GetFlatSparse()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, fs)
}

func TestDestroyingRootDetachesEntireSubtree(t *testing.T) {
	root, err := NewSDR([]int{16})
	require.NoError(t, err)
	mid, err := NewProxy(root, []int{4, 4})
	require.NoError(t, err)
	leaf, err := NewProxy(mid, []int{2, 8})
	require.NoError(t, err)

	root.Destroy()

	_, err = mid.GetFlatSparse()
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = leaf.GetFlatSparse()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDestroyingMidProxyLeavesRootAlive(t *testing.T) {
	root, err := NewSDR([]int{16})
	require.NoError(t, err)
	require.NoError(t, root.SetFlatSparse([]int{1}))
	mid, err := NewProxy(root, []int{4, 4})
	require.NoError(t, err)

	mid.Destroy()

	_, err = mid.GetFlatSparse()
	assert.ErrorIs(t, err, ErrInvalidState)

	fs, err := root.GetFlatSparse()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, fs)
}

func TestProxyDefaultsToParentDimensions(t *testing.T) {
	root, err := NewSDR([]int{4, 4})
	require.NoError(t, err)
	proxy, err := NewProxy(root)
	require.NoError(t, err)
	assert.Equal(t, root.Dimensions(), proxy.Dimensions())
}
