package verification

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// Derivation contexts keep verdict and document digests in separate domains
// so the same bytes never hash to the same value in both.
const (
	verdictHashContext  = "kyc-identity-verification 2026 verdict fingerprint v1"
	documentHashContext = "kyc-identity-verification 2026 reference document v1"
)

// encMode uses Core Deterministic Encoding: sorted map keys, smallest
// integer and float forms, no indefinite lengths.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("verification: CBOR encoder initialization failed: " + err.Error())
	}
}

// CanonicalBytes is the deterministic CBOR encoding of v.
func CanonicalBytes(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Fingerprint is the hex BLAKE3 digest of the verdict's canonical encoding.
// It is what a downstream ledger anchors; equal verdicts share it.
func Fingerprint(v *Verdict) (string, error) {
	return digest(verdictHashContext, v)
}

// DocumentDigest content-addresses an extracted document for storage as a
// reference in 1:1 comparison mode.
func DocumentDigest(doc ExtractedDocument) (string, error) {
	return digest(documentHashContext, doc)
}

// IsDigest reports whether s has the shape of a digest produced here.
func IsDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func digest(context string, v any) (string, error) {
	data, err := CanonicalBytes(v)
	if err != nil {
		return "", fmt.Errorf("canonical encoding: %w", err)
	}
	h := blake3.NewDeriveKey(context)
	if _, err := h.Write(data); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
