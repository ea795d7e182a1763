package eth

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const wordSize = 32

// maxDecodedItems bounds dynamic arrays read by the lenient decoders
const maxDecodedItems = 4096

var (
	// ErrShortData when the output is shorter than the decoded type needs
	ErrShortData = errors.New("output too short")
	// ErrMalformedData when offsets or lengths point outside the output
	ErrMalformedData = errors.New("malformed output")
)

// DecodeFailure is returned when neither the typed nor the raw read could produce a value
type DecodeFailure struct {
	Method string
	Typed  error
	Raw    error
	Data   []byte
}

func (e *DecodeFailure) Error() string {
	return fmt.Sprintf("decoding %s: typed: %v, raw: %v", e.Method, e.Typed, e.Raw)
}

// Unwrap returns the raw path error
func (e *DecodeFailure) Unwrap() error {
	return e.Raw
}

// DecodeAddress reads the address in the first output word. Empty output is the zero address.
// Outputs shorter than a word but at least 20 bytes long are taken as a right aligned address
// when their leading bytes are zero.
func DecodeAddress(data []byte) (common.Address, error) {
	var word []byte
	switch {
	case len(data) == 0:
		return common.Address{}, nil
	case len(data) >= wordSize:
		word = data[:wordSize]
	case len(data) >= common.AddressLength:
		word = data
	default:
		return common.Address{}, fmt.Errorf("%w: %d bytes for an address", ErrShortData, len(data))
	}
	padding := len(word) - common.AddressLength
	if !zeroes(word[:padding]) {
		return common.Address{}, fmt.Errorf("%w: dirty address padding", ErrMalformedData)
	}
	return common.BytesToAddress(word[padding:]), nil
}

// DecodeBool reads the first output word as a bool. Empty output is false.
// Any word other than 0 or 1 is malformed.
func DecodeBool(data []byte) (bool, error) {
	if len(data) == 0 {
		return false, nil
	}
	if len(data) < wordSize {
		return false, fmt.Errorf("%w: %d bytes for a bool", ErrShortData, len(data))
	}
	if !zeroes(data[:wordSize-1]) || data[wordSize-1] > 1 {
		return false, fmt.Errorf("%w: not a bool word", ErrMalformedData)
	}
	return data[wordSize-1] == 1, nil
}

func zeroes(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// DecodeBytes32Array reads an abi encoded bytes32[] output. Empty output is an empty list.
func DecodeBytes32Array(data []byte) ([][32]byte, error) {
	if len(data) == 0 {
		return [][32]byte{}, nil
	}
	offset, err := readSize(data, 0)
	if err != nil {
		return nil, err
	}
	length, err := readSize(data, offset)
	if err != nil {
		return nil, err
	}
	if length > maxDecodedItems {
		return nil, fmt.Errorf("%w: %d items", ErrMalformedData, length)
	}
	start := offset + wordSize
	if uint64(len(data)) < start+length*wordSize {
		return nil, fmt.Errorf("%w: %d items need %d bytes, have %d", ErrShortData, length, start+length*wordSize, len(data))
	}
	items := make([][32]byte, length)
	for i := range items {
		copy(items[i][:], data[start+uint64(i)*wordSize:])
	}
	return items, nil
}

// readSize reads the word at pos as an offset or length bounded by the output size
func readSize(data []byte, pos uint64) (uint64, error) {
	if uint64(len(data)) < pos+wordSize {
		return 0, fmt.Errorf("%w: no word at %d", ErrShortData, pos)
	}
	v := new(big.Int).SetBytes(data[pos : pos+wordSize])
	if !v.IsUint64() || v.Uint64() > uint64(len(data)) {
		return 0, fmt.Errorf("%w: value %s at %d out of range", ErrMalformedData, v, pos)
	}
	return v.Uint64(), nil
}

// DecodeUint256At reads the word at pos as an unsigned integer
func DecodeUint256At(data []byte, pos uint64) (*big.Int, error) {
	if uint64(len(data)) < pos+wordSize {
		return nil, fmt.Errorf("%w: no word at %d", ErrShortData, pos)
	}
	return new(big.Int).SetBytes(data[pos : pos+wordSize]), nil
}

// DecodeAddressAt reads the address word at pos
func DecodeAddressAt(data []byte, pos uint64) (common.Address, error) {
	if uint64(len(data)) < pos+wordSize {
		return common.Address{}, fmt.Errorf("%w: no word at %d", ErrShortData, pos)
	}
	return DecodeAddress(data[pos : pos+wordSize])
}

// DecodeBytesAt reads the dynamic bytes (or string) whose head word is at pos
func DecodeBytesAt(data []byte, pos uint64) ([]byte, error) {
	offset, err := readSize(data, pos)
	if err != nil {
		return nil, err
	}
	length, err := readSize(data, offset)
	if err != nil {
		return nil, err
	}
	start := offset + wordSize
	if uint64(len(data)) < start+length {
		return nil, fmt.Errorf("%w: %d bytes at %d, have %d", ErrShortData, length, start, len(data))
	}
	out := make([]byte, length)
	copy(out, data[start:start+length])
	return out, nil
}
