// Package clients holds the venue-facing collaborators: the wallet
// credential signer and the REST client used for authentication and
// snapshot bootstrap.
package clients

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Wallet signs the venue's auth challenge with an ECDSA key.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

// NewWallet derives a wallet from a hex-encoded private key.
func NewWallet(privateKeyHex string) (*Wallet, error) {
	key := privateKeyHex
	if len(key) >= 2 && (key[:2] == "0x" || key[:2] == "0X") {
		key = key[2:]
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}

	pub := privateKey.Public()
	pubECDSA, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("error casting public key to ECDSA")
	}

	return &Wallet{
		key:     privateKey,
		address: crypto.PubkeyToAddress(*pubECDSA).Hex(),
	}, nil
}

// Address returns the wallet's account address.
func (w *Wallet) Address() string {
	return w.address
}

// SignAuthMessage produces the EIP-191 personal-sign signature over the
// venue's timestamped auth message.
func (w *Wallet) SignAuthMessage(ts time.Time) (string, error) {
	message := fmt.Sprintf("auth: %s %d", w.address, ts.UnixMilli())
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)

	signature, err := crypto.Sign(crypto.Keccak256([]byte(prefixed)), w.key)
	if err != nil {
		return "", errors.Wrap(err, "sign auth message")
	}
	return hexutil.Encode(signature), nil
}
