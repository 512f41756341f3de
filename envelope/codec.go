package envelope

import (
	"time"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
	"github.com/ecliptix-labs/ecliptix-core/primitives"
	"github.com/ecliptix-labs/ecliptix-core/ratchet"
	"github.com/ecliptix-labs/ecliptix-core/secretbuf"
)

// AssociatedData builds the role-oriented AD both sides compute identically
// regardless of who encrypts: the initiator's X25519 identity public
// concatenated with the responder's (spec §4.6).
func AssociatedData(initiatorIdentityX25519, responderIdentityX25519 []byte) []byte {
	ad := make([]byte, 0, len(initiatorIdentityX25519)+len(responderIdentityX25519))
	ad = append(ad, initiatorIdentityX25519...)
	ad = append(ad, responderIdentityX25519...)
	return ad
}

// ProduceEnvelope advances session's sending chain, AEAD-encrypts plaintext
// under the derived message key, assembles and separately AEAD-encrypts
// EnvelopeMetadata under the session's metadata key, and returns the
// completed wire envelope, per spec §4.6's production steps.
func ProduceEnvelope(session *ratchet.Session, ad, plaintext []byte) (*SecureEnvelope, error) {
	out, err := session.PrepareNextSendMessage()
	if err != nil {
		return nil, err
	}

	var payloadBlob []byte
	viewErr := out.Key.View(func(mk []byte) {
		payloadBlob, err = primitives.AEADSeal(mk, out.Nonce, plaintext, ad)
	})
	if viewErr != nil {
		return nil, viewErr
	}
	if err != nil {
		return nil, err
	}

	requestID, err := primitives.RandomUint32()
	if err != nil {
		return nil, err
	}
	meta := EnvelopeMetadata{RequestID: requestID, Nonce: out.Nonce, RatchetIndex: out.Index}
	metaBytes, err := meta.MarshalBinary()
	if err != nil {
		return nil, err
	}

	headerNonce, err := primitives.RandomBytes(12)
	if err != nil {
		return nil, err
	}

	var encMeta []byte
	var metaErr error
	if err := session.GetMetadataEncryptionKey(func(mdk []byte) {
		encMeta, metaErr = primitives.AEADSeal(mdk, headerNonce, metaBytes, ad)
	}); err != nil {
		return nil, err
	}
	if metaErr != nil {
		return nil, metaErr
	}

	env := &SecureEnvelope{
		EncryptedMeta:    encMeta,
		EncryptedPayload: payloadBlob,
		HeaderNonce:      headerNonce,
		Timestamp:        time.Now(),
		ResultCode:       Success,
	}
	if out.IncludeDHPublic {
		env.DHPublic = out.DHPublic
	}
	return env, nil
}

// ConsumeEnvelope runs spec §4.6's consumption steps: optionally ratchets on
// a new peer DH public, decrypts the metadata, checks replay protection,
// derives the payload message key, decrypts the payload, and returns the
// plaintext.
func ConsumeEnvelope(session *ratchet.Session, ad []byte, env *SecureEnvelope) ([]byte, error) {
	if _, err := session.MaybeRatchetOnReceive(env.DHPublic); err != nil {
		return nil, err
	}

	var metaBytes []byte
	var aeadErr error
	if err := session.GetMetadataEncryptionKey(func(mdk []byte) {
		metaBytes, aeadErr = primitives.AEADOpen(mdk, env.HeaderNonce, env.EncryptedMeta, ad, ecliptixerr.MetadataAuthFailed)
	}); err != nil {
		return nil, err
	}
	if aeadErr != nil {
		return nil, aeadErr
	}
	defer secretbuf.Wipe(metaBytes)

	var meta EnvelopeMetadata
	if err := meta.UnmarshalBinary(metaBytes); err != nil {
		return nil, err
	}

	key, err := session.CheckAndDeriveReceiveKey(meta.Nonce, meta.RatchetIndex)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	var plaintext []byte
	var payloadErr error
	viewErr := key.View(func(mk []byte) {
		plaintext, payloadErr = primitives.AEADOpen(mk, meta.Nonce, env.EncryptedPayload, ad, ecliptixerr.PayloadAuthFailed)
	})
	if viewErr != nil {
		return nil, viewErr
	}
	if payloadErr != nil {
		return nil, payloadErr
	}
	return plaintext, nil
}
