package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func freshChainKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")[:32]
}

func TestGetOrDeriveKeyForIsStableAcrossCalls(t *testing.T) {
	s, err := Create(KindSender, freshChainKey(), nil, nil, 1000)
	require.NoError(t, err)
	defer s.Destroy()

	k1, err := s.GetOrDeriveKeyFor(1)
	require.NoError(t, err)
	var b1 []byte
	require.NoError(t, k1.View(func(p []byte) { b1 = append([]byte(nil), p...) }))

	k2, err := s.GetOrDeriveKeyFor(1)
	require.NoError(t, err)
	var b2 []byte
	require.NoError(t, k2.View(func(p []byte) { b2 = append([]byte(nil), p...) }))

	require.Equal(t, b1, b2)
}

func TestOutOfOrderDerivationThenIndexInPast(t *testing.T) {
	s, err := Create(KindReceiver, freshChainKey(), nil, nil, 1000)
	require.NoError(t, err)
	defer s.Destroy()

	// Jump straight to index 5: 1..4 are skipped and cached.
	_, err = s.GetOrDeriveKeyFor(5)
	require.NoError(t, err)
	require.EqualValues(t, 5, s.CurrentIndex())

	_, err = s.GetOrDeriveKeyFor(3)
	require.NoError(t, err)

	require.True(t, s.ConsumeKey(3))
	require.False(t, s.ConsumeKey(3))

	_, err = s.GetOrDeriveKeyFor(3)
	require.Error(t, err)
}

func TestIndexTooFarAhead(t *testing.T) {
	s, err := Create(KindReceiver, freshChainKey(), nil, nil, 1000)
	require.NoError(t, err)
	defer s.Destroy()

	_, err = s.GetOrDeriveKeyFor(maxIndexCeiling)
	require.NoError(t, err)

	s2, err := Create(KindReceiver, freshChainKey(), nil, nil, 1000)
	require.NoError(t, err)
	defer s2.Destroy()
	_, err = s2.GetOrDeriveKeyFor(maxIndexCeiling + 1)
	require.Error(t, err)
}

func TestPruneRetainsWindowAndTarget(t *testing.T) {
	s, err := Create(KindReceiver, freshChainKey(), nil, nil, 3)
	require.NoError(t, err)
	defer s.Destroy()

	_, err = s.GetOrDeriveKeyFor(10)
	require.NoError(t, err)

	require.Error(t, s.WithKey(7, func(p []byte) {}))
	require.NoError(t, s.WithKey(8, func(p []byte) {}))
	require.NoError(t, s.WithKey(9, func(p []byte) {}))
	require.NoError(t, s.WithKey(10, func(p []byte) {}))
}

func TestUpdateAfterDHRatchetResetsState(t *testing.T) {
	s, err := Create(KindReceiver, freshChainKey(), nil, nil, 1000)
	require.NoError(t, err)
	defer s.Destroy()

	_, err = s.GetOrDeriveKeyFor(5)
	require.NoError(t, err)

	newKey := []byte("fedcba9876543210fedcba9876543210")[:32]
	require.NoError(t, s.UpdateAfterDHRatchet(newKey, nil, nil))
	require.EqualValues(t, 0, s.CurrentIndex())
	require.Error(t, s.WithKey(5, func(p []byte) {}))
}

func TestCreateRejectsMismatchedDHPair(t *testing.T) {
	dhPriv := freshChainKey()
	_, err := Create(KindSender, freshChainKey(), dhPriv, nil, 1000)
	require.Error(t, err)
}
