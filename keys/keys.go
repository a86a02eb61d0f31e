package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// Service bundles the key handling, canonical serialization, signing and
// hashing used by the vote ledger. Keys and signatures travel as hex
// strings; an optional "0x" prefix is accepted on input.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// GenerateKeyPair generates a new secp256k1 ECDSA key pair
func (s *Service) GenerateKeyPair() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// EncodePublicKey serializes a public key to its canonical hex form
// (uncompressed, lowercase, no prefix).
func (s *Service) EncodePublicKey(pub *ecdsa.PublicKey) string {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return ""
	}
	return hex.EncodeToString(crypto.FromECDSAPub(pub))
}

// EncodePrivateKey serializes a private key to hex for handing back to
// the voter. The ledger never stores private keys.
func (s *Service) EncodePrivateKey(priv *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.FromECDSA(priv))
}

// ParsePrivateKey restores a private key from its hex form.
func (s *Service) ParsePrivateKey(keyStr string) (*ecdsa.PrivateKey, error) {
	keyBytes, err := hex.DecodeString(normalizeHex(keyStr))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key hex string: %w", err)
	}

	privateKey, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return privateKey, nil
}

// ParsePublicKey restores a public key from its hex form.
func (s *Service) ParsePublicKey(keyStr string) (*ecdsa.PublicKey, error) {
	keyBytes, err := hex.DecodeString(normalizeHex(keyStr))
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key hex string: %w", err)
	}

	publicKey, err := crypto.UnmarshalPubkey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return publicKey, nil
}

// NormalizePublicKey rewrites a key string to the canonical form used in
// transactions and the double-vote guard. Callers must normalize before
// signing so that the signed and verified payloads are byte-identical.
func (s *Service) NormalizePublicKey(keyStr string) string {
	return normalizeHex(keyStr)
}

// IsValidPublicKey reports whether the string decodes to a well-formed
// secp256k1 public key. Malformed input is a normal rejection, not an error.
func (s *Service) IsValidPublicKey(keyStr string) bool {
	if keyStr == "" {
		return false
	}
	_, err := s.ParsePublicKey(keyStr)
	return err == nil
}

// CanonicalPayload produces the deterministic encoding of a vote's
// signable fields. Signing and verification must both go through this
// function; any drift between call sites breaks every signature check.
func (s *Service) CanonicalPayload(voteID string, electionID, candidateID int64, voterPublicKey string, timestamp int64) []byte {
	return []byte(fmt.Sprintf("%s|%d|%d|%s|%d",
		voteID, electionID, candidateID, normalizeHex(voterPublicKey), timestamp))
}

// Sign creates a hex-encoded signature over the Keccak-256 digest of data.
func (s *Service) Sign(data []byte, privateKey *ecdsa.PrivateKey) (string, error) {
	signature, err := crypto.Sign(s.Keccak256(data), privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}
	return hex.EncodeToString(signature), nil
}

// Verify checks a signature against data and the claimed public key.
// It returns false on any decoding or recovery problem, never an error.
func (s *Service) Verify(data []byte, signature, publicKey string) bool {
	sigBytes, err := hex.DecodeString(normalizeHex(signature))
	if err != nil || len(sigBytes) != crypto.SignatureLength {
		return false
	}

	pub, err := s.ParsePublicKey(publicKey)
	if err != nil {
		return false
	}

	sigPublicKey, err := crypto.SigToPub(s.Keccak256(data), sigBytes)
	if err != nil {
		return false
	}
	return sigPublicKey.X.Cmp(pub.X) == 0 && sigPublicKey.Y.Cmp(pub.Y) == 0
}

// Keccak256 computes a Keccak-256 hash over the concatenation of data
func (s *Service) Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// HashData returns the hex Keccak-256 content hash of data.
func (s *Service) HashData(data ...[]byte) string {
	return hex.EncodeToString(s.Keccak256(data...))
}

// TransactionHash computes the content hash of a full transaction: the
// canonical signable payload plus the signature.
func (s *Service) TransactionHash(payload []byte, signature string) string {
	return s.HashData(payload, []byte(normalizeHex(signature)))
}

func normalizeHex(v string) string {
	return strings.ToLower(strings.TrimPrefix(v, "0x"))
}
