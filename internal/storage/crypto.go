package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Object encryption formats, identified by their magic number.
const (
	formatGCM = "GCM3NCR0"
	formatCBC = "3NCR0PTD"
)

const kdfIterations = 100000

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfIterations, 32, sha256.New)
}

// IsEncrypted reports whether data starts with a known encryption header.
func IsEncrypted(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	m := string(data[:8])
	return m == formatGCM || m == formatCBC
}

// Decrypt opens data written in either encryption format.
func Decrypt(data []byte, password string) ([]byte, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}
	switch string(data[:8]) {
	case formatGCM:
		return decryptGCM(data, password)
	case formatCBC:
		return decryptCBC(data, password)
	}
	return nil, fmt.Errorf("unknown encryption format")
}

func decryptGCM(data []byte, password string) ([]byte, error) {
	// Format: magic(8) + salt(16) + nonce(12) + encrypted_data + auth_tag(16)
	if len(data) < 8+16+12+16 {
		return nil, fmt.Errorf("GCM data too short: %d bytes", len(data))
	}
	salt := data[8:24]
	nonce := data[24:36]

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, data[36:], nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plaintext, nil
}

func decryptCBC(data []byte, password string) ([]byte, error) {
	// Format: magic(8) + hash(32) + length(8) + salt(16) + iv(16) + encrypted_data
	if len(data) < 8+32+8+16+16 {
		return nil, fmt.Errorf("CBC data too short: %d bytes", len(data))
	}
	storedHash := data[8:40]
	length := binary.BigEndian.Uint64(data[40:48])
	encrypted := data[48:]
	if uint64(len(encrypted)) != length {
		return nil, fmt.Errorf("length mismatch: expected %d, got %d", length, len(encrypted))
	}
	sum := sha256.Sum256(encrypted)
	if !bytes.Equal(storedHash, sum[:]) {
		return nil, fmt.Errorf("hash verification failed - data corrupted")
	}

	salt, iv, ciphertext := encrypted[:16], encrypted[16:32], encrypted[32:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of block size")
	}
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return removePKCS7Padding(plaintext)
}

// encryptCBC writes the CBC format with an integrity hash.
func encryptCBC(data []byte, password string) ([]byte, error) {
	salt := make([]byte, 16)
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	padded := applyPKCS7Padding(data, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	encrypted := make([]byte, 0, 32+len(ciphertext))
	encrypted = append(encrypted, salt...)
	encrypted = append(encrypted, iv...)
	encrypted = append(encrypted, ciphertext...)
	hash := sha256.Sum256(encrypted)

	out := make([]byte, 0, 8+32+8+len(encrypted))
	out = append(out, formatCBC...)
	out = append(out, hash[:]...)
	out = binary.BigEndian.AppendUint64(out, uint64(len(encrypted)))
	out = append(out, encrypted...)
	return out, nil
}

func applyPKCS7Padding(data []byte, blockSize int) []byte {
	padding := blockSize - (len(data) % blockSize)
	out := make([]byte, len(data), len(data)+padding)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func removePKCS7Padding(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding length: %d", n)
	}
	for i := len(data) - n; i < len(data); i++ {
		if data[i] != byte(n) {
			return nil, fmt.Errorf("invalid padding at position %d", i)
		}
	}
	return data[:len(data)-n], nil
}
