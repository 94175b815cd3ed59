package x402

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
)

// NetworkType represents the blockchain virtual machine type.
type NetworkType int

const (
	// NetworkTypeUnknown represents an unrecognized network.
	NetworkTypeUnknown NetworkType = iota
	// NetworkTypeEVM represents Ethereum Virtual Machine chains.
	NetworkTypeEVM
	// NetworkTypeSVM represents Solana Virtual Machine chains.
	NetworkTypeSVM
)

func (t NetworkType) String() string {
	switch t {
	case NetworkTypeEVM:
		return "evm"
	case NetworkTypeSVM:
		return "svm"
	default:
		return "unknown"
	}
}

// ChainConfig contains the chain-specific defaults used when building requirements.
type ChainConfig struct {
	// NetworkID is the x402 protocol network identifier (e.g., "base", "solana").
	NetworkID string

	// Type is the virtual machine family of the chain.
	Type NetworkType

	// USDCAddress is the official Circle USDC contract address or mint address.
	USDCAddress string

	// Decimals is the number of decimal places for USDC (always 6).
	Decimals uint8
}

// Mainnet chain configurations
var (
	SolanaMainnet = ChainConfig{
		NetworkID:   "solana",
		Type:        NetworkTypeSVM,
		USDCAddress: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Decimals:    6,
	}

	BaseMainnet = ChainConfig{
		NetworkID:   "base",
		Type:        NetworkTypeEVM,
		USDCAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Decimals:    6,
	}

	PolygonMainnet = ChainConfig{
		NetworkID:   "polygon",
		Type:        NetworkTypeEVM,
		USDCAddress: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		Decimals:    6,
	}

	AvalancheMainnet = ChainConfig{
		NetworkID:   "avalanche",
		Type:        NetworkTypeEVM,
		USDCAddress: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
		Decimals:    6,
	}
)

// Testnet chain configurations
var (
	SolanaDevnet = ChainConfig{
		NetworkID:   "solana-devnet",
		Type:        NetworkTypeSVM,
		USDCAddress: "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
		Decimals:    6,
	}

	BaseSepolia = ChainConfig{
		NetworkID:   "base-sepolia",
		Type:        NetworkTypeEVM,
		USDCAddress: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Decimals:    6,
	}

	PolygonAmoy = ChainConfig{
		NetworkID:   "polygon-amoy",
		Type:        NetworkTypeEVM,
		USDCAddress: "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
		Decimals:    6,
	}

	AvalancheFuji = ChainConfig{
		NetworkID:   "avalanche-fuji",
		Type:        NetworkTypeEVM,
		USDCAddress: "0x5425890298aed601595a70AB815c96711a31Bc65",
		Decimals:    6,
	}
)

var chains = map[string]ChainConfig{
	"base":              BaseMainnet,
	"base-mainnet":      BaseMainnet,
	"base-sepolia":      BaseSepolia,
	"polygon":           PolygonMainnet,
	"polygon-mainnet":   PolygonMainnet,
	"polygon-amoy":      PolygonAmoy,
	"avalanche":         AvalancheMainnet,
	"avalanche-mainnet": AvalancheMainnet,
	"avalanche-fuji":    AvalancheFuji,
	"solana":            SolanaMainnet,
	"solana-mainnet":    SolanaMainnet,
	"solana-devnet":     SolanaDevnet,
}

// LookupChain returns the chain registered under networkID.
// Both bare ("base") and suffixed ("base-mainnet") mainnet identifiers are accepted.
func LookupChain(networkID string) (ChainConfig, bool) {
	c, ok := chains[networkID]
	return c, ok
}

// ValidateNetwork validates a network identifier and returns its type.
func ValidateNetwork(networkID string) (NetworkType, error) {
	if networkID == "" {
		return NetworkTypeUnknown, fmt.Errorf("%w: network cannot be empty", ErrInvalidNetwork)
	}
	c, ok := chains[networkID]
	if !ok {
		return NetworkTypeUnknown, fmt.Errorf("%w: %s", ErrInvalidNetwork, networkID)
	}
	return c.Type, nil
}

// ValidateAddress checks that address is well formed for networkID.
// Addresses on networks outside the chain table are accepted unchecked.
func ValidateAddress(networkID, address string) error {
	if address == "" {
		return fmt.Errorf("%w: address cannot be empty", ErrInvalidAddress)
	}

	c, ok := chains[networkID]
	if !ok {
		return nil
	}

	switch c.Type {
	case NetworkTypeEVM:
		if !common.IsHexAddress(address) {
			return fmt.Errorf("%w: %q is not a 0x-prefixed hex address for %s", ErrInvalidAddress, address, networkID)
		}
	case NetworkTypeSVM:
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("%w: %q is not a base58 public key for %s: %v", ErrInvalidAddress, address, networkID, err)
		}
	}
	return nil
}
