package iota

import (
	"encoding/base64"

	"golang.org/x/crypto/blake2b"

	"github.com/vietddude/cycler/internal/core/domain"
)

// Signature scheme flag for ed25519.
const flagEd25519 byte = 0x00

// transactionIntent is the intent prefix for transaction data:
// scope TransactionData, version V0, app IOTA.
var transactionIntent = [3]byte{0, 0, 0}

// IntentDigest hashes the intent message for txBytes.
func IntentDigest(txBytes []byte) [32]byte {
	msg := make([]byte, 0, len(transactionIntent)+len(txBytes))
	msg = append(msg, transactionIntent[:]...)
	msg = append(msg, txBytes...)
	return blake2b.Sum256(msg)
}

// SignTransaction returns the base64 serialized signature flag || sig || pubkey.
func SignTransaction(cred domain.Credential, txBytes []byte) string {
	digest := IntentDigest(txBytes)
	sig := cred.Sign(digest[:])
	pub := cred.PublicKey()

	out := make([]byte, 0, 1+len(sig)+len(pub))
	out = append(out, flagEd25519)
	out = append(out, sig...)
	out = append(out, pub...)
	return base64.StdEncoding.EncodeToString(out)
}
