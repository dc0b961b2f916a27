package binary

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// ErrSignatureInvalid indicates a detached signature did not verify.
var ErrSignatureInvalid = errors.New("signature verification failed")

// Verifier checks detached OpenPGP signatures against a keyring.
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier loads an armored or binary public keyring from keyringPath.
func NewVerifier(keyringPath string) (*Verifier, error) {
	data, err := os.ReadFile(keyringPath)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return NewVerifierFromBytes(data)
}

// NewVerifierFromBytes parses an armored or binary public keyring.
func NewVerifierFromBytes(data []byte) (*Verifier, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}
	return &Verifier{keyring: keyring}, nil
}

// VerifyFile checks signaturePath, armored or binary, over filePath.
func (v *Verifier) VerifyFile(filePath, signaturePath string) (VerificationMethod, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return VerificationNone, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	sig, err := os.ReadFile(signaturePath)
	if err != nil {
		return VerificationNone, fmt.Errorf("open signature: %w", err)
	}

	_, err = openpgp.CheckArmoredDetachedSignature(v.keyring, file, bytes.NewReader(sig), nil)
	if err != nil {
		if _, serr := file.Seek(0, io.SeekStart); serr != nil {
			return VerificationNone, fmt.Errorf("rewind file: %w", serr)
		}
		_, err = openpgp.CheckDetachedSignature(v.keyring, file, bytes.NewReader(sig), nil)
	}
	if err != nil {
		return VerificationNone, fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	}
	return VerificationGPG, nil
}
