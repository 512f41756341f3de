// Package identity implements IdentityKeys and X3DH per spec §3, §4.2: the
// long-term identity, signed pre-key, one-time pre-keys, and ephemeral key
// owned by one party, plus the initial-handshake shared-secret derivation.
package identity

import (
	"github.com/ecliptix-labs/ecliptix-core/primitives"
	"github.com/ecliptix-labs/ecliptix-core/secretbuf"
)

// x3dhInfo is the protocol-fixed HKDF info string for X3DH shared-secret
// derivation. Per spec §6 this must be byte-identical across
// implementations that wish to interoperate.
var x3dhInfo = []byte("ECLIPTIX_X3DH_V1")

// OneTimePreKey is a single one-time pre-key: a 32-bit id plus an X25519 key
// pair whose private half lives in a SecretBuffer.
type OneTimePreKey struct {
	ID   uint32
	priv *secretbuf.Buffer
	Pub  []byte
}

// Keys is the exclusive owner of one party's identity material: the Ed25519
// signing identity, an X25519 identity key pair, a signed pre-key, a pool
// of one-time pre-keys, and the current ephemeral key pair.
type Keys struct {
	edPriv   *secretbuf.Buffer
	EdPub    []byte
	idPriv   *secretbuf.Buffer
	IDPub    []byte
	spkID    uint32
	spkPriv  *secretbuf.Buffer
	SPKPub   []byte
	SPKSig   []byte
	otPreKeys []OneTimePreKey
	ephPriv  *secretbuf.Buffer
	EphPub   []byte
}

// Generate creates a fresh identity: an Ed25519 signing key, an
// independently-generated X25519 identity key pair, a signed pre-key (with
// an Ed25519 signature over its public half), and an initial pool of
// oneTimeCount one-time pre-keys.
func Generate(oneTimeCount int) (*Keys, error) {
	edPriv, edPub, err := primitives.GenerateEd25519()
	if err != nil {
		return nil, err
	}
	idPriv, idPub, err := primitives.GenerateX25519()
	if err != nil {
		return nil, err
	}
	spkPriv, spkPub, err := primitives.GenerateX25519()
	if err != nil {
		return nil, err
	}
	spkSig, err := primitives.Ed25519Sign(edPriv, spkPub)
	if err != nil {
		return nil, err
	}

	k := &Keys{
		EdPub:  edPub,
		IDPub:  idPub,
		spkID:  1,
		SPKPub: spkPub,
		SPKSig: spkSig,
	}
	if k.edPriv, err = secretbuf.NewFromBytes(edPriv); err != nil {
		return nil, err
	}
	if k.idPriv, err = secretbuf.NewFromBytes(idPriv); err != nil {
		return nil, err
	}
	if k.spkPriv, err = secretbuf.NewFromBytes(spkPriv); err != nil {
		return nil, err
	}

	for i := 0; i < oneTimeCount; i++ {
		otk, err := newOneTimePreKey(uint32(i + 1))
		if err != nil {
			return nil, err
		}
		k.otPreKeys = append(k.otPreKeys, otk)
	}

	if err := k.GenerateEphemeral(); err != nil {
		return nil, err
	}
	return k, nil
}

func newOneTimePreKey(id uint32) (OneTimePreKey, error) {
	priv, pub, err := primitives.GenerateX25519()
	if err != nil {
		return OneTimePreKey{}, err
	}
	sb, err := secretbuf.NewFromBytes(priv)
	if err != nil {
		return OneTimePreKey{}, err
	}
	return OneTimePreKey{ID: id, priv: sb, Pub: pub}, nil
}

// GenerateEphemeral replaces the current ephemeral X25519 key pair, wiping
// the predecessor.
func (k *Keys) GenerateEphemeral() error {
	priv, pub, err := primitives.GenerateX25519()
	if err != nil {
		return err
	}
	sb, err := secretbuf.NewFromBytes(priv)
	if err != nil {
		return err
	}
	if k.ephPriv != nil {
		k.ephPriv.Destroy()
	}
	k.ephPriv = sb
	k.EphPub = pub
	return nil
}

// takeOneTimePreKey removes and returns the one-time pre-key matching id, if
// present. The caller is responsible for destroying its private half once
// consumed.
func (k *Keys) takeOneTimePreKey(id uint32) (OneTimePreKey, bool) {
	for i, otk := range k.otPreKeys {
		if otk.ID == id {
			k.otPreKeys = append(k.otPreKeys[:i], k.otPreKeys[i+1:]...)
			return otk, true
		}
	}
	return OneTimePreKey{}, false
}

// Destroy wipes every SecretBuffer owned by k, including one-time pre-keys.
func (k *Keys) Destroy() {
	if k.edPriv != nil {
		k.edPriv.Destroy()
	}
	if k.idPriv != nil {
		k.idPriv.Destroy()
	}
	if k.spkPriv != nil {
		k.spkPriv.Destroy()
	}
	if k.ephPriv != nil {
		k.ephPriv.Destroy()
	}
	for _, otk := range k.otPreKeys {
		if otk.priv != nil {
			otk.priv.Destroy()
		}
	}
}

// dh lends priv to a view and computes its Diffie-Hellman value with pub.
func dh(priv *secretbuf.Buffer, pub []byte) (out []byte, err error) {
	viewErr := priv.View(func(p []byte) {
		out, err = primitives.X25519DH(p, pub)
	})
	if viewErr != nil {
		return nil, viewErr
	}
	return out, err
}
