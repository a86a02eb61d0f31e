package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	svc := NewService()

	priv, err := svc.GenerateKeyPair()
	require.NoError(t, err)
	pub := svc.EncodePublicKey(&priv.PublicKey)

	payload := svc.CanonicalPayload("vote-1", 42, 7, pub, 1700000000)
	sig, err := svc.Sign(payload, priv)
	require.NoError(t, err)

	assert.True(t, svc.Verify(payload, sig, pub))
}

func TestVerifyRejectsMutatedFields(t *testing.T) {
	svc := NewService()

	priv, err := svc.GenerateKeyPair()
	require.NoError(t, err)
	pub := svc.EncodePublicKey(&priv.PublicKey)

	signed := svc.CanonicalPayload("vote-1", 42, 7, pub, 1700000000)
	sig, err := svc.Sign(signed, priv)
	require.NoError(t, err)

	otherPriv, err := svc.GenerateKeyPair()
	require.NoError(t, err)
	otherPub := svc.EncodePublicKey(&otherPriv.PublicKey)

	mutated := map[string][]byte{
		"vote id":     svc.CanonicalPayload("vote-2", 42, 7, pub, 1700000000),
		"election id": svc.CanonicalPayload("vote-1", 43, 7, pub, 1700000000),
		"candidate":   svc.CanonicalPayload("vote-1", 42, 8, pub, 1700000000),
		"public key":  svc.CanonicalPayload("vote-1", 42, 7, otherPub, 1700000000),
		"timestamp":   svc.CanonicalPayload("vote-1", 42, 7, pub, 1700000001),
	}
	for name, payload := range mutated {
		assert.False(t, svc.Verify(payload, sig, pub), "mutated %s must not verify", name)
	}
}

func TestVerifyRejectsMutatedSignature(t *testing.T) {
	svc := NewService()

	priv, err := svc.GenerateKeyPair()
	require.NoError(t, err)
	pub := svc.EncodePublicKey(&priv.PublicKey)

	payload := svc.CanonicalPayload("vote-1", 42, 7, pub, 1700000000)
	sig, err := svc.Sign(payload, priv)
	require.NoError(t, err)

	// Flip one hex digit of the signature.
	flipped := []byte(sig)
	if flipped[0] == '0' {
		flipped[0] = '1'
	} else {
		flipped[0] = '0'
	}

	assert.False(t, svc.Verify(payload, string(flipped), pub))
}

func TestVerifyMalformedInputsReturnFalse(t *testing.T) {
	svc := NewService()

	priv, err := svc.GenerateKeyPair()
	require.NoError(t, err)
	pub := svc.EncodePublicKey(&priv.PublicKey)

	payload := svc.CanonicalPayload("vote-1", 42, 7, pub, 1700000000)
	sig, err := svc.Sign(payload, priv)
	require.NoError(t, err)

	assert.False(t, svc.Verify(payload, "not-hex", pub))
	assert.False(t, svc.Verify(payload, "deadbeef", pub), "truncated signature")
	assert.False(t, svc.Verify(payload, sig, "not-a-key"))
	assert.False(t, svc.Verify(payload, sig, ""))
}

func TestCanonicalPayloadDeterministic(t *testing.T) {
	svc := NewService()

	priv, err := svc.GenerateKeyPair()
	require.NoError(t, err)
	pub := svc.EncodePublicKey(&priv.PublicKey)

	first := svc.CanonicalPayload("vote-1", 42, 7, pub, 1700000000)
	second := NewService().CanonicalPayload("vote-1", 42, 7, pub, 1700000000)
	assert.Equal(t, first, second, "independently reconstructed payloads must be byte-identical")

	// Prefixed or upper-cased key forms normalize to the same payload.
	prefixed := svc.CanonicalPayload("vote-1", 42, 7, "0x"+pub, 1700000000)
	assert.Equal(t, first, prefixed)
}

func TestIsValidPublicKey(t *testing.T) {
	svc := NewService()

	priv, err := svc.GenerateKeyPair()
	require.NoError(t, err)
	pub := svc.EncodePublicKey(&priv.PublicKey)

	assert.True(t, svc.IsValidPublicKey(pub))
	assert.True(t, svc.IsValidPublicKey("0x"+pub))
	assert.False(t, svc.IsValidPublicKey(""))
	assert.False(t, svc.IsValidPublicKey("PK1"))
	assert.False(t, svc.IsValidPublicKey(pub[:20]), "truncated key")
}

func TestKeyRoundTrip(t *testing.T) {
	svc := NewService()

	priv, err := svc.GenerateKeyPair()
	require.NoError(t, err)

	restored, err := svc.ParsePrivateKey(svc.EncodePrivateKey(priv))
	require.NoError(t, err)
	assert.Equal(t, 0, priv.D.Cmp(restored.D))

	pub, err := svc.ParsePublicKey(svc.EncodePublicKey(&priv.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, 0, priv.PublicKey.X.Cmp(pub.X))
	assert.Equal(t, 0, priv.PublicKey.Y.Cmp(pub.Y))
}

func TestTransactionHash(t *testing.T) {
	svc := NewService()

	payload := svc.CanonicalPayload("vote-1", 42, 7, "aa", 1700000000)

	first := svc.TransactionHash(payload, "deadbeef")
	second := svc.TransactionHash(payload, "deadbeef")
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)

	assert.NotEqual(t, first, svc.TransactionHash(payload, "beefdead"),
		"content hash must cover the signature")
}
