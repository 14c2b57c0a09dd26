package permission

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidMaskSize is returned by [DecodeMask] for inputs that are not 8 bytes long.
var ErrInvalidMaskSize = errors.New("invalid mask size")

// EncodeMask returns the 8-byte big-endian form of m.
func EncodeMask(m Mask64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(m))
	return b
}

// DecodeMask parses the output of [EncodeMask]. An empty input decodes to the
// zero mask so that absent store values read as "no permissions".
func DecodeMask(data []byte) (Mask64, error) {
	switch len(data) {
	case 0:
		return 0, nil
	case 8:
		return Mask64(binary.BigEndian.Uint64(data)), nil
	default:
		return 0, ErrInvalidMaskSize
	}
}
