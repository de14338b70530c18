// Package encryption implements a framed AES-256-GCM stream format:
// an 8-byte magic, an 8-byte random nonce prefix, then frames of
// [4-byte big-endian plaintext length][ciphertext]. A zero-length frame
// terminates the stream. The per-frame nonce is the prefix plus a 4-byte
// frame counter.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
)

var magic = [8]byte{'S', 'L', 'A', 'B', 'E', 'N', 'C', '1'}

const frameSize = 32 * 1024

// EncryptAESGCM encrypts src into dst using AES-256-GCM. The password is
// hashed to a 32-byte key.
func EncryptAESGCM(dst io.Writer, src io.Reader, password string) (int64, error) {
	gcm, err := newGCM(password)
	if err != nil {
		return 0, err
	}

	noncePrefix := make([]byte, 8)
	if _, err := rand.Read(noncePrefix); err != nil {
		return 0, err
	}

	if _, err := dst.Write(magic[:]); err != nil {
		return 0, err
	}
	if _, err := dst.Write(noncePrefix); err != nil {
		return 0, err
	}

	nonce := make([]byte, gcm.NonceSize())
	copy(nonce[:8], noncePrefix)

	buf := make([]byte, frameSize)
	var lenBuf [4]byte
	var counter uint32
	var total int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			binary.BigEndian.PutUint32(nonce[8:], counter)
			counter++

			binary.BigEndian.PutUint32(lenBuf[:], uint32(n))
			if _, err := dst.Write(lenBuf[:]); err != nil {
				return total, err
			}
			if _, err := dst.Write(gcm.Seal(nil, nonce, buf[:n], nil)); err != nil {
				return total, err
			}
			total += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return total, readErr
		}
	}

	// zero-length terminator marks a complete stream
	binary.BigEndian.PutUint32(lenBuf[:], 0)
	if _, err := dst.Write(lenBuf[:]); err != nil {
		return total, err
	}
	return total, nil
}

func newGCM(password string) (cipher.AEAD, error) {
	if password == "" {
		return nil, fmt.Errorf("encryption password is empty")
	}

	key := sha256.Sum256([]byte(password))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	if gcm.NonceSize() != 12 {
		return nil, fmt.Errorf("unexpected GCM nonce size: %d", gcm.NonceSize())
	}
	return gcm, nil
}
