package bmcrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ECIES sizes, matching the real network's key_e/key_m split (spec.md
// §3.4/GLOSSARY "ECIES").
const (
	aesKeySize  = 32
	hmacKeySize = 32
	ivSize      = aes.BlockSize
)

// Errors returned while opening an ECIES blob.
var (
	ErrCiphertextTooShort = errors.New("bmcrypto: ecies ciphertext too short")
	ErrMACMismatch        = errors.New("bmcrypto: ecies message authentication failed")
)

// Encrypt seals data for the holder of the secp256k1 private key
// matching pub, following the curve's ECIES construction: an ephemeral
// key pair, an ECDH shared secret hashed down to an encryption and a
// MAC key, AES-256-CBC under a random IV, and an HMAC-SHA256 tag over
// IV || ephemeral public key || ciphertext. The layout mirrors the
// generic Encrypt/Decrypt pairing of other ECIES implementations in
// the corpus, re-keyed onto this curve and this KDF/AEAD choice.
func Encrypt(pub []byte, data []byte) ([]byte, error) {
	recipient, err := parsePublicKey(pub)
	if err != nil {
		return nil, err
	}

	ephemeral, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("bmcrypto: ecies: ephemeral key: %w", err)
	}

	keyE, keyM := deriveKeys(ephemeral, recipient)

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("bmcrypto: ecies: iv: %w", err)
	}

	ciphertext, err := symEncrypt(keyE, iv, data)
	if err != nil {
		return nil, err
	}

	ephemeralPub := ephemeral.PubKey().SerializeUncompressed()

	body := make([]byte, 0, len(iv)+len(ephemeralPub)+len(ciphertext))
	body = append(body, iv...)
	body = append(body, ephemeralPub...)
	body = append(body, ciphertext...)

	tag := messageTag(keyM, body)
	return append(body, tag...), nil
}

// Decrypt opens a blob produced by Encrypt using the secp256k1 private
// key priv.
func Decrypt(priv []byte, blob []byte) ([]byte, error) {
	kp, err := KeyPairFromPrivateKey(priv)
	if err != nil {
		return nil, err
	}

	minLen := ivSize + PublicKeySize + sha256.Size
	if len(blob) < minLen {
		return nil, ErrCiphertextTooShort
	}

	body := blob[:len(blob)-sha256.Size]
	tag := blob[len(blob)-sha256.Size:]

	iv := body[:ivSize]
	ephemeralPub := body[ivSize : ivSize+PublicKeySize]
	ciphertext := body[ivSize+PublicKeySize:]

	ephemeral, err := parsePublicKey(ephemeralPub)
	if err != nil {
		return nil, err
	}

	keyE, keyM := deriveKeys(kp.priv, ephemeral)

	if !hmac.Equal(tag, messageTag(keyM, body)) {
		return nil, ErrMACMismatch
	}

	return symDecrypt(keyE, iv, ciphertext)
}

// deriveKeys computes the ECDH shared secret between a local private
// key and a remote public key, then stretches it with SHA-512 into an
// AES key and a MAC key, following the real network's key_e || key_m
// split.
func deriveKeys(local *btcec.PrivateKey, remote *btcec.PublicKey) (keyE, keyM []byte) {
	shared := ecdh(local, remote)
	digest := sha512.Sum512(shared)
	return digest[:aesKeySize], digest[aesKeySize : aesKeySize+hmacKeySize]
}

// ecdh multiplies the remote public point by the local private scalar
// on the secp256k1 curve and returns the big-endian X coordinate, the
// shared secret both sides of an ECIES exchange arrive at
// independently.
func ecdh(local *btcec.PrivateKey, remote *btcec.PublicKey) []byte {
	curve := btcec.S256()
	x, _ := curve.ScalarMult(remote.X(), remote.Y(), local.Serialize())

	shared := make([]byte, 32)
	xBytes := x.Bytes()
	copy(shared[32-len(xBytes):], xBytes)
	return shared
}

// messageTag computes the HMAC-SHA256 authentication tag over body
// under keyM.
func messageTag(keyM, body []byte) []byte {
	mac := hmac.New(sha256.New, keyM)
	mac.Write(body)
	return mac.Sum(nil)
}

// symEncrypt encrypts data with AES-256-CBC under key and iv, applying
// PKCS#7 padding.
func symEncrypt(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("bmcrypto: ecies: cipher: %w", err)
	}

	padded := pkcs7Pad(data, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// symDecrypt reverses symEncrypt.
func symDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("bmcrypto: ecies: cipher: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, ErrCiphertextTooShort
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrCiphertextTooShort
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, ErrCiphertextTooShort
	}
	return data[:len(data)-padLen], nil
}
