package rpc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrMalformedResult = errors.New("rpc: malformed call result")

var (
	selectorDecimals = crypto.Keccak256([]byte("decimals()"))[:4] // 313ce567
	selectorName     = crypto.Keccak256([]byte("name()"))[:4]     // 06fdde03
	selectorSymbol   = crypto.Keccak256([]byte("symbol()"))[:4]   // 95d89b41

	stringArgs = abi.Arguments{{Type: mustType("string")}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// Single static word; the value sits big-endian in bytes 28..32
func DecodeUint32(data []byte) (uint32, error) {
	if len(data) != 32 {
		return 0, fmt.Errorf("%w: uint32 needs 32 bytes, got %d", ErrMalformedResult, len(data))
	}
	for _, b := range data[:28] {
		if b != 0 {
			return 0, fmt.Errorf("%w: uint32 overflows", ErrMalformedResult)
		}
	}
	return binary.BigEndian.Uint32(data[28:32]), nil
}

// Dynamic string: offset word, length word, then the UTF-8 payload at byte 64
func DecodeString(data []byte) (string, error) {
	if len(data) < 64 {
		return "", fmt.Errorf("%w: string needs at least 64 bytes, got %d", ErrMalformedResult, len(data))
	}

	out, err := stringArgs.Unpack(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: unexpected %T", ErrMalformedResult, out[0])
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: string is not utf-8", ErrMalformedResult)
	}

	return s, nil
}
