package dex

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// abi.Unpack returns *big.Int for every integer wider than 64 bits or of an
// odd width (uint24, int24, uint160), and native Go ints otherwise.

var (
	minInt24 = big.NewInt(-1 << 23)
	maxInt24 = big.NewInt(1<<23 - 1)
)

func asAddress(value interface{}) (common.Address, error) {
	if addr, ok := value.(common.Address); ok {
		return addr, nil
	}
	return common.Address{}, fmt.Errorf("want address, got %T", value)
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return new(big.Int).Set(v), nil
	case uint8:
		return big.NewInt(int64(v)), nil
	case uint16:
		return big.NewInt(int64(v)), nil
	case uint32:
		return big.NewInt(int64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	}
	return nil, fmt.Errorf("want integer, got %T", value)
}

func asUint8(value interface{}) (uint8, error) {
	if v, ok := value.(uint8); ok {
		return v, nil
	}
	n, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() || n.Uint64() > 255 {
		return 0, fmt.Errorf("uint8 overflow: %s", n)
	}
	return uint8(n.Uint64()), nil
}

func int24FromBig(value *big.Int) (int32, error) {
	if value.Cmp(minInt24) < 0 || value.Cmp(maxInt24) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value)
	}
	return int32(value.Int64()), nil
}

// bytes32ToString decodes the fixed-width symbol/name some older tokens return.
func bytes32ToString(value interface{}) (string, bool) {
	v, ok := value.([32]byte)
	if !ok {
		return "", false
	}
	return string(bytes.TrimRight(v[:], "\x00")), true
}
