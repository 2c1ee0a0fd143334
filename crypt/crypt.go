// Package crypt implements the session key agreement and symmetric cipher
// of spec.md §4.4 ("Crypt codec (C4)"): ECDH P-256 key agreement plus
// AES-128-CBC with PKCS#7 padding and a fresh random IV per call. It
// generalizes the teacher's crypto/encryption package
// (github.com/grailbio/base/crypto/encryption), whose Encrypter/Decrypter
// split and initIV/readIV pattern (fresh IV prepended to ciphertext) is
// kept; the teacher's HMAC-over-plaintext integrity step is dropped because
// the spec's wire format has no room for a MAC and §1 explicitly places
// "signed/authenticated framing beyond what AES-CBC gives" out of scope.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/hex"
	"io"

	"github.com/TMac-wei/mylogger/internal/errors"
)

// PublicKeySize is the SEC1 uncompressed encoding size of a secp256r1
// public key (0x04 || X(32) || Y(32)).
const PublicKeySize = 65

const aesKeySize = 16

func curve() ecdh.Curve { return ecdh.P256() }

// GenerateKeyPair creates a fresh ephemeral ECDH key pair on secp256r1,
// returning the private scalar and the SEC1 uncompressed public key.
func GenerateKeyPair() (private, public []byte, err error) {
	priv, err := curve().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, errors.E(errors.Codec, "generate ecdh key pair", err)
	}
	return priv.Bytes(), priv.PublicKey().Bytes(), nil
}

// SharedSecret re-derives the ECDH shared value from a local private key
// and a peer's public key. It fails if the peer's point is invalid.
func SharedSecret(private, peerPublic []byte) ([]byte, error) {
	priv, err := curve().NewPrivateKey(private)
	if err != nil {
		return nil, errors.E(errors.Codec, "parse ecdh private key", err)
	}
	pub, err := curve().NewPublicKey(peerPublic)
	if err != nil {
		return nil, errors.E(errors.Codec, "parse ecdh public key", err)
	}
	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, errors.E(errors.Codec, "ecdh agreement", err)
	}
	return secret, nil
}

// HexEncode is a thin wrapper over encoding/hex, used at the transport
// boundary (server_public_key_hex, server_private_hex configuration
// values).
func HexEncode(b []byte) string { return hex.EncodeToString(b) }

// HexDecode is a thin wrapper over encoding/hex.
func HexDecode(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.E(errors.Config, "invalid hex", err)
	}
	return b, nil
}

// AESCrypt is AES-128-CBC with PKCS#7 padding. Each Encrypt call generates
// a fresh cryptographically random IV and prepends it to the returned
// ciphertext; Decrypt splits it back off.
type AESCrypt struct {
	key [aesKeySize]byte
}

// NewAESCrypt builds an AESCrypt from raw key material: if keyMaterial is
// exactly 16 bytes it is used as-is, and if it is longer the first 16 bytes
// are used, per spec.md §4.4.
func NewAESCrypt(keyMaterial []byte) (*AESCrypt, error) {
	if len(keyMaterial) < aesKeySize {
		return nil, errors.E(errors.Config, "aes key material too short")
	}
	c := &AESCrypt{}
	copy(c.key[:], keyMaterial[:aesKeySize])
	return c, nil
}

// NewAESCryptFromHex decodes a hex string before building the AESCrypt,
// for key material that arrives hex-encoded. The sink and the decoder do
// not use it: both pass the binary shared secret to NewAESCrypt directly.
func NewAESCryptFromHex(hexKey string) (*AESCrypt, error) {
	raw, err := HexDecode(hexKey)
	if err != nil {
		return nil, err
	}
	return NewAESCrypt(raw)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, errors.E(errors.Codec, "invalid padded length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return nil, errors.E(errors.Codec, "invalid pkcs7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.E(errors.Codec, "invalid pkcs7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}

// Encrypt returns iv || aes_cbc_pkcs7(plain). Ciphertext length is always
// 16 + the PKCS#7-padded plaintext length.
func (c *AESCrypt) Encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, errors.E(errors.Codec, "new aes cipher", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, errors.E(errors.Codec, "generate iv", err)
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	out := make([]byte, 0, len(iv)+len(ciphertext))
	out = append(out, iv...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decrypt splits the leading 16-byte IV off b and decrypts the remainder,
// returning a Codec error with message "ShortCiphertext" if b is shorter
// than one IV.
func (c *AESCrypt) Decrypt(b []byte) ([]byte, error) {
	if len(b) < aes.BlockSize {
		return nil, errors.E(errors.Codec, "ShortCiphertext")
	}
	iv, ciphertext := b[:aes.BlockSize], b[aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.E(errors.Codec, "ciphertext not block-aligned")
	}
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, errors.E(errors.Codec, "new aes cipher", err)
	}
	plainPadded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plainPadded, ciphertext)
	return pkcs7Unpad(plainPadded)
}
