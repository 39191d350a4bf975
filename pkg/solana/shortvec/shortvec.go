// Package shortvec implements the compact-u16 length prefix used throughout
// the Solana wire format: 7 bits per byte, least significant group first,
// with the high bit set on every byte but the last.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// MaxEncodedLen is the maximum number of bytes a length can occupy
const MaxEncodedLen = 3

// EncodeLen writes the compact encoding of n to w, returning the number of
// bytes written. n must fit in a uint16.
func EncodeLen(w io.Writer, n int) (int, error) {
	if n < 0 || n > math.MaxUint16 {
		return 0, errors.Errorf("shortvec: len %d out of range [0, %d]", n, math.MaxUint16)
	}

	var buf [MaxEncodedLen]byte
	size := 0
	for {
		buf[size] = byte(n & 0x7f)
		n >>= 7
		size++

		if n == 0 {
			break
		}
		buf[size-1] |= 0x80
	}

	return w.Write(buf[:size])
}

// DecodeLen reads a compact encoded length from r.
func DecodeLen(r io.Reader) (int, error) {
	var b [1]byte
	var val int

	for i := 0; i < MaxEncodedLen; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}

		val |= int(b[0]&0x7f) << (7 * i)
		if b[0]&0x80 == 0 {
			return val, nil
		}
	}

	return 0, errors.Errorf("shortvec: encoding exceeds %d bytes", MaxEncodedLen)
}
