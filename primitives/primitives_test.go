package primitives

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestX25519DHMatchesBothSides(t *testing.T) {
	aPriv, aPub, err := GenerateX25519()
	require.NoError(t, err)
	bPriv, bPub, err := GenerateX25519()
	require.NoError(t, err)

	sharedA, err := X25519DH(aPriv, bPub)
	require.NoError(t, err)
	sharedB, err := X25519DH(bPriv, aPub)
	require.NoError(t, err)
	require.Equal(t, sharedA, sharedB)
}

func TestX25519RejectsLowOrderPoints(t *testing.T) {
	priv, _, err := GenerateX25519()
	require.NoError(t, err)

	zero := make([]byte, 32)
	_, err = X25519DH(priv, zero)
	require.Error(t, err)
}

func TestEd25519SignVerify(t *testing.T) {
	priv, pub, err := GenerateEd25519()
	require.NoError(t, err)
	msg := []byte("bind this message")
	sig, err := Ed25519Sign(priv, msg)
	require.NoError(t, err)
	require.True(t, Ed25519Verify(pub, msg, sig))
	require.False(t, Ed25519Verify(pub, []byte("tampered"), sig))
}

func TestHKDFDeterministic(t *testing.T) {
	ikm := []byte("input keying material")
	out1, err := HKDF(nil, ikm, []byte("info"), 32)
	require.NoError(t, err)
	out2, err := HKDF(nil, ikm, []byte("info"), 32)
	require.NoError(t, err)
	require.Equal(t, out1, out2)

	out3, err := HKDF(nil, ikm, []byte("other-info"), 32)
	require.NoError(t, err)
	require.NotEqual(t, out1, out3)
}

func TestAEADRoundTrip(t *testing.T) {
	key, err := RandomBytes(AESKeySize)
	require.NoError(t, err)
	nonce, err := RandomBytes(AESNonceSize)
	require.NoError(t, err)
	ad := []byte("associated-data")
	pt := []byte("hello, ratchet")

	blob, err := AEADSeal(key, nonce, pt, ad)
	require.NoError(t, err)

	ct, tag, err := SplitTag(blob)
	require.NoError(t, err)
	require.Len(t, tag, AESTagSize)

	out, err := AEADOpen(key, nonce, append(ct, tag...), ad, 999)
	require.NoError(t, err)
	require.Equal(t, pt, out)
}

func TestAEADTamperedTagFails(t *testing.T) {
	key, _ := RandomBytes(AESKeySize)
	nonce, _ := RandomBytes(AESNonceSize)
	blob, err := AEADSeal(key, nonce, []byte("msg"), nil)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xFF

	_, err = AEADOpen(key, nonce, blob, nil, 999)
	require.Error(t, err)
}

func TestArgon2idDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	params := Argon2idParams{Time: 1, MemoryKiB: 8 * 1024, Threads: 1, KeyLength: 32}
	out1, err := Argon2idStretch([]byte("export-key"), salt, params)
	require.NoError(t, err)
	out2, err := Argon2idStretch([]byte("export-key"), salt, params)
	require.NoError(t, err)
	require.Equal(t, out1, out2)
}

func TestBlake2bPersonalRejectsBadSizes(t *testing.T) {
	_, err := Blake2bPersonal(nil, []byte("short"), make([]byte, 16), []byte("msg"), 32)
	require.Error(t, err)
	_, err = Blake2bPersonal(nil, make([]byte, 16), []byte("short"), []byte("msg"), 32)
	require.Error(t, err)
}

func TestBlake2bPersonalDomainSeparation(t *testing.T) {
	key := []byte("a-32-byte-master-key-material!!")
	salt := []byte("0123456789abcdef")
	p1 := []byte("ED25519_________")[:16]
	p2 := []byte("X25519__________")[:16]

	out1, err := Blake2bPersonal(key, salt, p1, []byte("seed"), 32)
	require.NoError(t, err)
	out2, err := Blake2bPersonal(key, salt, p2, []byte("seed"), 32)
	require.NoError(t, err)
	require.NotEqual(t, out1, out2)
}
