package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"unicode/utf8"
)

// Undecryptable is returned by Decrypt when the input cannot be decoded.
// The web client renders this marker verbatim, so it is part of the contract.
const Undecryptable = "[Unable to decrypt message]"

// counterStart is the fixed initial counter value for CTR mode. The web
// client encrypts with aes-js using `new Counter(5)`, and stored ciphertext
// must stay decryptable, so the same constant is used here. There is no
// per-message nonce: identical plaintexts under the same key produce
// identical ciphertext.
const counterStart = 5

// keySize is the AES-256 key length in bytes.
const keySize = 32

// Codec encrypts and decrypts message bodies with a pre-shared key using
// AES-256-CTR. Both operations are pure and deterministic.
type Codec struct {
	key []byte
}

// NewCodec derives the AES key from the configured secret by padding it
// with '0' to 32 bytes, or truncating it, matching the client derivation.
func NewCodec(secret string) *Codec {
	key := make([]byte, keySize)
	copy(key, secret)
	for i := len(secret); i < keySize; i++ {
		key[i] = '0'
	}
	return &Codec{key: key}
}

// Encrypt encrypts plaintext and returns base64 ciphertext.
func (c *Codec) Encrypt(plaintext string) string {
	out := make([]byte, len(plaintext))
	c.stream().XORKeyStream(out, []byte(plaintext))
	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt decrypts base64 ciphertext and returns the plaintext. Malformed
// or mismatched-key input yields the Undecryptable sentinel; Decrypt never
// fails past this boundary.
func (c *Codec) Decrypt(ciphertext string) string {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return Undecryptable
	}
	out := make([]byte, len(raw))
	c.stream().XORKeyStream(out, raw)
	if !utf8.Valid(out) {
		return Undecryptable
	}
	return string(out)
}

// stream builds a fresh CTR stream positioned at the fixed counter.
func (c *Codec) stream() cipher.Stream {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		// Key length is fixed at construction; this cannot happen.
		panic(err)
	}
	iv := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint64(iv[8:], counterStart)
	return cipher.NewCTR(block, iv)
}
