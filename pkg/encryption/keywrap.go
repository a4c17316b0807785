// Package encryption implements the key-disclosure primitives: a
// per-doctor wrapping key derived from the doctor's identifier, and
// AES-ECB wrap/unwrap of a patient's symmetric disclosure key.
//
// Two properties of this scheme are preserved for compatibility with the
// deployed ledger and must not be mistaken for sound design:
//
//   - The wrapping key is sha256 of the doctor's public username. No
//     secret material is involved, so anyone who knows the username can
//     recompute the key and unwrap.
//   - ECB mode encrypts blocks independently, leaking equality of
//     identical plaintext blocks.
package encryption

import (
	"crypto/aes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// DeriveWrappingKey computes the AES-256 wrapping key for a doctor:
// sha256 of the doctor identifier alone.
func DeriveWrappingKey(doctorID string) []byte {
	sum := sha256.Sum256([]byte(doctorID))
	return sum[:]
}

// WrapKey encrypts a patient's symmetric disclosure key under the
// doctor-derived wrapping key and returns base64 ciphertext.
func WrapKey(doctorID, symmetricKey string) (string, error) {
	block, err := aes.NewCipher(DeriveWrappingKey(doctorID))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher block: %w", err)
	}

	plaintext := pkcs7Pad([]byte(symmetricKey), block.BlockSize())
	ciphertext := make([]byte, len(plaintext))
	for i := 0; i < len(plaintext); i += block.BlockSize() {
		block.Encrypt(ciphertext[i:i+block.BlockSize()], plaintext[i:i+block.BlockSize()])
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// UnwrapKey recomputes the doctor-derived wrapping key and decrypts a
// base64 ciphertext produced by WrapKey.
func UnwrapKey(doctorID, wrapped string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	block, err := aes.NewCipher(DeriveWrappingKey(doctorID))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher block: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return "", fmt.Errorf("wrapped key is not a whole number of blocks")
	}

	plaintext := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += block.BlockSize() {
		block.Decrypt(plaintext[i:i+block.BlockSize()], ciphertext[i:i+block.BlockSize()])
	}

	unpadded, err := pkcs7Unpad(plaintext, block.BlockSize())
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+pad)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", pad)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-pad], nil
}
