// Package crypto signs Polymarket CLOB requests: EIP-712 orders and ClobAuth
// messages with the wallet key, and L2 request HMACs with API credentials.
package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	clobDomainType     = ethcrypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId)"))
	exchangeDomainType = ethcrypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	clobAuthType       = ethcrypto.Keccak256([]byte("ClobAuth(address address,uint256 timestamp,uint256 nonce)"))
	orderType          = ethcrypto.Keccak256([]byte("Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"))
)

// exchangeContracts are the CTF Exchange contracts that verify order
// signatures, by chain.
var exchangeContracts = map[int]common.Address{
	137:   common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"), // Polygon
	80002: common.HexToAddress("0xdFE02Eb6733538f8Ea35D585af8DE5958AD99E40"), // Amoy
}

// OrderPayload is the signed part of a CLOB order. Amounts and ids are base-10
// strings since token ids exceed 64 bits.
type OrderPayload struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          int    `json:"side"`          // 0 buy, 1 sell
	SignatureType int    `json:"signatureType"` // 0 EOA, 1 proxy, 2 Gnosis Safe
}

// Signer holds the wallet key and the domain separators of one chain.
type Signer struct {
	key         *ecdsa.PrivateKey
	address     common.Address
	chainID     int
	authDomain  []byte
	orderDomain []byte // nil when the chain has no known exchange
}

// NewSigner parses a hex secp256k1 key, with or without 0x, for chainID.
func NewSigner(privateKeyHex string, chainID int) (*Signer, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	chain := uintWord(big.NewInt(int64(chainID)))
	s := &Signer{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		authDomain: ethcrypto.Keccak256(clobDomainType,
			ethcrypto.Keccak256([]byte("ClobAuthDomain")),
			ethcrypto.Keccak256([]byte("1")),
			chain,
		),
	}
	if contract, ok := exchangeContracts[chainID]; ok {
		s.orderDomain = ethcrypto.Keccak256(exchangeDomainType,
			ethcrypto.Keccak256([]byte("Polymarket CTF Exchange")),
			ethcrypto.Keccak256([]byte("1")),
			chain,
			common.LeftPadBytes(contract.Bytes(), 32),
		)
	}
	return s, nil
}

// Address is the wallet address of the key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignAuthMessage signs the ClobAuth message used to create or derive L2 API
// credentials.
func (s *Signer) SignAuthMessage(address string, timestamp, nonce int64) (string, error) {
	hash := ethcrypto.Keccak256(clobAuthType,
		common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32),
		uintWord(big.NewInt(timestamp)),
		uintWord(big.NewInt(nonce)),
	)
	return s.sign(typedDataDigest(s.authDomain, hash))
}

// SignOrder signs order under the exchange domain of the signer's chain.
func (s *Signer) SignOrder(order OrderPayload) (string, error) {
	if s.orderDomain == nil {
		return "", fmt.Errorf("crypto/signer: no exchange contract for chain %d", s.chainID)
	}
	hash, err := orderStructHash(order)
	if err != nil {
		return "", err
	}
	return s.sign(typedDataDigest(s.orderDomain, hash))
}

// sign returns the 65-byte r||s||v signature as 0x-hex, with v in {27, 28}.
func (s *Signer) sign(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// typedDataDigest is keccak256("\x19\x01" || domain || structHash).
func typedDataDigest(domain, structHash []byte) []byte {
	return ethcrypto.Keccak256([]byte{0x19, 0x01}, domain, structHash)
}

func orderStructHash(o OrderPayload) ([]byte, error) {
	numbers := []struct {
		name, value string
	}{
		{"salt", o.Salt},
		{"tokenId", o.TokenID},
		{"makerAmount", o.MakerAmount},
		{"takerAmount", o.TakerAmount},
		{"expiration", o.Expiration},
		{"nonce", o.Nonce},
		{"feeRateBps", o.FeeRateBps},
	}
	words := make(map[string][]byte, len(numbers))
	for _, n := range numbers {
		v, ok := new(big.Int).SetString(n.value, 10)
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("crypto/signer: invalid %s %q", n.name, n.value)
		}
		words[n.name] = uintWord(v)
	}
	addr := func(a string) []byte {
		return common.LeftPadBytes(common.HexToAddress(a).Bytes(), 32)
	}

	return ethcrypto.Keccak256(orderType,
		words["salt"],
		addr(o.Maker),
		addr(o.Signer),
		addr(o.Taker),
		words["tokenId"],
		words["makerAmount"],
		words["takerAmount"],
		words["expiration"],
		words["nonce"],
		words["feeRateBps"],
		uintWord(big.NewInt(int64(o.Side))),
		uintWord(big.NewInt(int64(o.SignatureType))),
	), nil
}

// uintWord ABI-encodes a non-negative integer below 2^256 as one 32-byte word.
func uintWord(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}
