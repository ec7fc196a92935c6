package crypto

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// slip10Key is an ed25519 extended private key, only hardened children exist for it.
type slip10Key struct {
	secret    []byte
	chainCode []byte
}

var hardenedPath = regexp.MustCompile(`^m(/\d+')*$`)

func slip10Master(seed []byte) slip10Key {
	i := hmac512([]byte("ed25519 seed"), seed)
	return slip10Key{secret: i[:32], chainCode: i[32:]}
}

func (k slip10Key) child(index uint32) slip10Key {
	buf := make([]byte, 0, 1+len(k.secret)+4)
	buf = append(buf, 0)
	buf = append(buf, k.secret...)
	buf = binary.BigEndian.AppendUint32(buf, index)

	i := hmac512(k.chainCode, buf)
	return slip10Key{secret: i[:32], chainCode: i[32:]}
}

func hmac512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// deriveSLIP10 walks a fully hardened path like m/44'/396'/0'.
func deriveSLIP10(seed []byte, path string) ([]byte, error) {
	if !hardenedPath.MatchString(path) {
		return nil, fmt.Errorf("%w: path %q must have only hardened components", ErrInvalidKey, path)
	}

	key := slip10Master(seed)
	for _, s := range strings.Split(path, "/")[1:] {
		v, err := strconv.ParseUint(strings.TrimSuffix(s, "'"), 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: bad path component %q", ErrInvalidKey, s)
		}
		key = key.child(uint32(v) + hardenedOffset)
	}
	return key.secret, nil
}
