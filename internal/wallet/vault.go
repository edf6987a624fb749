// Package wallet manages custodial keys: encryption at rest, persistence,
// and per-user key lookup.
package wallet

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
)

// Record is the stored form of an encrypted private key. The ciphertext is
// base64 and the IV is hex, both as strings inside a JSON payload.
type Record struct {
	Encrypted string `json:"encrypted"`
	IV        string `json:"iv"`
}

// Vault encrypts and decrypts private keys with AES-256-CBC.
type Vault struct {
	key []byte
}

// NewVault takes the master key as 64 hex characters.
func NewVault(keyHex string) (*Vault, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, boterr.Wrap(boterr.CodeConfiguration, "decode wallet key", err)
	}
	if len(key) != 32 {
		return nil, boterr.New(boterr.CodeConfiguration, fmt.Sprintf("wallet key must be 32 bytes, got %d", len(key)))
	}
	return &Vault{key: key}, nil
}

// Encrypt seals a private key with a fresh random IV.
func (v *Vault) Encrypt(plaintext []byte) (Record, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return Record{}, boterr.Wrap(boterr.CodeInternal, "init cipher", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return Record{}, boterr.Wrap(boterr.CodeInternal, "generate iv", err)
	}
	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return Record{
		Encrypted: base64.StdEncoding.EncodeToString(out),
		IV:        hex.EncodeToString(iv),
	}, nil
}

// Decrypt opens a stored record. Any malformed field or padding maps to a
// corrupt-record error rather than leaking cipher internals to callers.
func (v *Vault) Decrypt(rec Record) ([]byte, error) {
	iv, err := hex.DecodeString(rec.IV)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, boterr.New(boterr.CodeCorruptRecord, "wallet record has invalid iv")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(rec.Encrypted)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, boterr.New(boterr.CodeCorruptRecord, "wallet record has invalid ciphertext")
	}
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, boterr.Wrap(boterr.CodeInternal, "init cipher", err)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return nil, boterr.New(boterr.CodeCorruptRecord, "wallet record failed padding check")
	}
	return plain, nil
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
