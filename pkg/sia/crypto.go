package sia

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// ivSize is the AES block size and also the size of the IV prefixed
// to every encrypted payload.
const ivSize = aes.BlockSize

// EncryptPayload pads plaintext with PKCS7 to the AES block size,
// encrypts it under key with a freshly generated IV in CBC mode, and
// returns iv||ciphertext, ready to be placed after the payload-
// opening '[' of an outbound frame.
func EncryptPayload(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sia: new cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, block.BlockSize())

	out := make([]byte, ivSize+len(padded))
	iv := out[:ivSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("sia: generate iv: %w", err)
	}

	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out[ivSize:], padded)
	return out, nil
}

// DecryptPayload reverses EncryptPayload: data is iv||ciphertext, as
// received in the payload bytes of an encrypted frame. Returns
// ErrDecryptFailed if data is malformed or the padding is invalid.
func DecryptPayload(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: new cipher: %v", ErrDecryptFailed, err)
	}
	blockSize := block.BlockSize()

	if len(data) < ivSize+blockSize || (len(data)-ivSize)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad ciphertext length %d", ErrDecryptFailed, len(data))
	}

	iv := data[:ivSize]
	ciphertext := data[ivSize:]

	plaintext := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
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
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecryptFailed)
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("%w: invalid padding", ErrDecryptFailed)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("%w: invalid padding bytes", ErrDecryptFailed)
		}
	}
	return data[:len(data)-padLen], nil
}
