package ncm

import (
	"crypto/aes"
	"fmt"
)

// decryptAesEcb decrypts data with AES-128 in ECB mode and strips the PKCS7
// padding. The container uses this for the key and metadata blobs only, the
// audio payload has its own cipher.
func decryptAesEcb(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed initializing aes cipher: %w", err)
	}

	blockSize := block.BlockSize()
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("ciphertext of %d bytes is not a multiple of the aes block size", len(data))
	}

	decrypted := make([]byte, len(data))
	for i := 0; i < len(data); i += blockSize {
		block.Decrypt(decrypted[i:i+blockSize], data[i:i+blockSize])
	}

	return pkcs7Unpad(decrypted, blockSize)
}

// pkcs7Unpad validates and strips PKCS7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPadding
	}

	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("padding length %d out of range: %w", n, ErrInvalidPadding)
	}

	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding bytes: %w", ErrInvalidPadding)
		}
	}

	return data[:len(data)-n], nil
}
