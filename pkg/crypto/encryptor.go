package crypto

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
)

// Encryptor seals upload blobs at rest using age (X25519).
type Encryptor struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewEncryptor creates an Encryptor from an age identity string ("AGE-SECRET-KEY-1...").
// If key is empty, a throwaway identity is generated; blobs written with it
// are unreadable after restart, so only use that in development.
func NewEncryptor(key string) (*Encryptor, error) {
	var identity *age.X25519Identity
	var err error

	if key == "" {
		identity, err = age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("generating identity: %w", err)
		}
	} else {
		identity, err = age.ParseX25519Identity(key)
		if err != nil {
			return nil, fmt.Errorf("parsing identity: %w", err)
		}
	}

	return &Encryptor{
		identity:  identity,
		recipient: identity.Recipient(),
	}, nil
}

// GenerateKey generates a new encryption key and returns it
func GenerateKey() (string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating identity: %w", err)
	}
	return identity.String(), nil
}

// EncryptStream copies src into dst as an age ciphertext.
func (e *Encryptor) EncryptStream(dst io.Writer, src io.Reader) (int64, error) {
	w, err := age.Encrypt(dst, e.recipient)
	if err != nil {
		return 0, fmt.Errorf("creating encryptor: %w", err)
	}

	n, err := io.Copy(w, src)
	if err != nil {
		return n, fmt.Errorf("writing plaintext: %w", err)
	}

	if err := w.Close(); err != nil {
		return n, fmt.Errorf("closing encryptor: %w", err)
	}
	return n, nil
}

// DecryptStream returns a reader yielding the plaintext of src.
func (e *Encryptor) DecryptStream(src io.Reader) (io.Reader, error) {
	r, err := age.Decrypt(src, e.identity)
	if err != nil {
		return nil, fmt.Errorf("creating decryptor: %w", err)
	}
	return r, nil
}

// Encrypt encrypts plaintext data and returns the ciphertext
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := e.EncryptStream(&buf, bytes.NewReader(plaintext)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decrypt decrypts ciphertext and returns the plaintext
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	r, err := e.DecryptStream(bytes.NewReader(ciphertext))
	if err != nil {
		return nil, err
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading plaintext: %w", err)
	}
	return plaintext, nil
}

// PublicKey returns the public key (recipient) as a string
func (e *Encryptor) PublicKey() string {
	return e.recipient.String()
}
