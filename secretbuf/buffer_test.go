package secretbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAndView(t *testing.T) {
	b, err := New(32)
	require.NoError(t, err)
	defer b.Destroy()
	require.Equal(t, 32, b.Len())

	err = b.View(func(p []byte) {
		for _, c := range p {
			require.Equal(t, byte(0), c)
		}
	})
	require.NoError(t, err)
}

func TestNewFromBytesWipesSource(t *testing.T) {
	src := []byte("0123456789abcdef0123456789abcdef")
	original := append([]byte(nil), src...)
	b, err := NewFromBytes(src)
	require.NoError(t, err)
	defer b.Destroy()

	for _, c := range src {
		require.Equal(t, byte(0), c, "source bytes must be wiped")
	}
	require.True(t, b.EqualBytes(original))
}

func TestEqualConstantTimeSemantics(t *testing.T) {
	a, err := NewFromBytes([]byte("same-contents-32-bytes-exactly!!"))
	require.NoError(t, err)
	defer a.Destroy()
	b, err := NewFromBytes([]byte("same-contents-32-bytes-exactly!!"))
	require.NoError(t, err)
	defer b.Destroy()
	c, err := NewFromBytes([]byte("different-contents-32-bytes!!!!!"))
	require.NoError(t, err)
	defer c.Destroy()

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestDestroyIsIdempotentAndDisablesAccess(t *testing.T) {
	b, err := New(16)
	require.NoError(t, err)
	b.Destroy()
	b.Destroy()

	err = b.View(func(p []byte) {})
	require.Error(t, err)
}

func TestWipe(t *testing.T) {
	p := []byte{1, 2, 3, 4}
	Wipe(p)
	require.Equal(t, []byte{0, 0, 0, 0}, p)
}
