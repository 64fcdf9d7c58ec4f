package replay

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress converts one hex address, rejecting empty input.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("address is required")
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}

// ParseAddresses converts string addresses into common.Address, skipping blanks.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			continue
		}
		addr, err := ParseAddress(input)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}
