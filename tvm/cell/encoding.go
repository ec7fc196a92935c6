package cell

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

type Encoding string

const (
	EncodingBase64 Encoding = "base64"
	EncodingHex    Encoding = "hex"
)

func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "", string(EncodingBase64):
		return EncodingBase64, nil
	case string(EncodingHex):
		return EncodingHex, nil
	}
	return "", fmt.Errorf("unknown encoding %q", s)
}

// EncodeBOC serializes the cell without crc and encodes it as text.
func EncodeBOC(c *Cell, enc Encoding) (string, error) {
	data := c.ToBOCWithFlags(false)

	switch enc {
	case "", EncodingBase64:
		return base64.StdEncoding.EncodeToString(data), nil
	case EncodingHex:
		return hex.EncodeToString(data), nil
	}
	return "", fmt.Errorf("unknown encoding %q", enc)
}

func DecodeBOC(s string, enc Encoding) (*Cell, error) {
	var data []byte
	var err error

	switch enc {
	case "", EncodingBase64:
		data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	case EncodingHex:
		data, err = hex.DecodeString(strings.TrimSpace(s))
	default:
		return nil, fmt.Errorf("unknown encoding %q", enc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBOC, err)
	}

	return FromBOC(data)
}
