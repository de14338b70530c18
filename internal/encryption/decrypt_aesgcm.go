package encryption

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DecryptAESGCM reverses EncryptAESGCM. A stream without the zero-length
// terminator is reported as truncated.
func DecryptAESGCM(dst io.Writer, src io.Reader, password string) (int64, error) {
	gcm, err := newGCM(password)
	if err != nil {
		return 0, err
	}

	gotMagic := make([]byte, len(magic))
	if _, err := io.ReadFull(src, gotMagic); err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	for i := range magic {
		if gotMagic[i] != magic[i] {
			return 0, fmt.Errorf("invalid encrypted stream header")
		}
	}

	noncePrefix := make([]byte, 8)
	if _, err := io.ReadFull(src, noncePrefix); err != nil {
		return 0, fmt.Errorf("read nonce: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	copy(nonce[:8], noncePrefix)

	var lenBuf [4]byte
	var counter uint32
	var total int64

	for {
		if _, err := io.ReadFull(src, lenBuf[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return total, fmt.Errorf("truncated encrypted stream")
			}
			return total, err
		}
		plainLen := binary.BigEndian.Uint32(lenBuf[:])
		if plainLen == 0 {
			break
		}
		if plainLen > frameSize {
			return total, fmt.Errorf("frame length %d exceeds maximum", plainLen)
		}

		cipherBuf := make([]byte, int(plainLen)+gcm.Overhead())
		if _, err := io.ReadFull(src, cipherBuf); err != nil {
			return total, fmt.Errorf("read frame: %w", err)
		}

		binary.BigEndian.PutUint32(nonce[8:], counter)
		counter++

		plaintext, err := gcm.Open(nil, nonce, cipherBuf, nil)
		if err != nil {
			return total, fmt.Errorf("decrypt failed: %w", err)
		}

		if _, err := dst.Write(plaintext); err != nil {
			return total, err
		}
		total += int64(len(plaintext))
	}

	return total, nil
}
