// Package chain holds the single shared Ethereum client and signer the
// rest of the solver's components read from and sign with. There is
// exactly one of these per solver process, used serially: the main loop
// owns it and never shares it across goroutines.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client bundles the RPC connection, the solver's signing key, and the
// chain ID the transactor needs, resolved once at startup.
type Client struct {
	Eth        *ethclient.Client
	PrivateKey *ecdsa.PrivateKey
	ChainID    *big.Int
}

// Dial connects to rpcURL and parses the solver's signing key. It fails
// fast: a bad RPC URL or a malformed private key is a configuration error,
// not something to retry.
func Dial(ctx context.Context, rpcURL, privateKeyHex string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: failed to connect to %s: %w", rpcURL, err)
	}

	key, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: %w", err)
	}

	chainID, err := eth.NetworkID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: failed to fetch chain ID: %w", err)
	}

	return &Client{Eth: eth, PrivateKey: key, ChainID: chainID}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.Eth.Close()
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid PRIVATE_KEY: %w", err)
	}
	return key, nil
}
