package crypt_test

import (
	"testing"

	"github.com/TMac-wei/mylogger/crypt"
	"github.com/stretchr/testify/require"
)

func TestECDHAgreementIsSymmetric(t *testing.T) {
	privA, pubA, err := crypt.GenerateKeyPair()
	require.NoError(t, err)
	privB, pubB, err := crypt.GenerateKeyPair()
	require.NoError(t, err)
	require.Len(t, pubA, crypt.PublicKeySize)

	secretAB, err := crypt.SharedSecret(privA, pubB)
	require.NoError(t, err)
	secretBA, err := crypt.SharedSecret(privB, pubA)
	require.NoError(t, err)
	require.Equal(t, secretAB, secretBA)
}

func TestAESRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}
	c, err := crypt.NewAESCrypt(key)
	require.NoError(t, err)

	plain := []byte("hello, structured logging")
	ct1, err := c.Encrypt(plain)
	require.NoError(t, err)
	ct2, err := c.Encrypt(plain)
	require.NoError(t, err)
	require.NotEqual(t, ct1, ct2, "fresh IV per call should differ")

	out, err := c.Decrypt(ct1)
	require.NoError(t, err)
	require.Equal(t, plain, out)
}

func TestAESFromHexLongerBinaryUsesFirst16Bytes(t *testing.T) {
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i + 1)
	}
	c1, err := crypt.NewAESCrypt(secret)
	require.NoError(t, err)
	c2, err := crypt.NewAESCryptFromHex(crypt.HexEncode(secret[:16]))
	require.NoError(t, err)

	plain := []byte("same key material")
	ct, err := c1.Encrypt(plain)
	require.NoError(t, err)
	out, err := c2.Decrypt(ct)
	require.NoError(t, err)
	require.Equal(t, plain, out)
}

func TestDecryptShortCiphertextFails(t *testing.T) {
	c, err := crypt.NewAESCrypt(make([]byte, 16))
	require.NoError(t, err)
	_, err = c.Decrypt([]byte("short"))
	require.Error(t, err)
}
