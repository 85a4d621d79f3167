package verifier

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/moltbook/ivxp/internal/logger"
	"github.com/moltbook/ivxp/internal/models"
	"go.uber.org/zap"
)

// bound for the on-chain transaction lookup
const paymentLookupTimeout = 10 * time.Second

// Verifier checks delivery request signatures and payment proofs.
// Both checks fail closed: any malformed input or lookup error is a plain false.
type Verifier struct {
	client  *ethclient.Client
	network string
}

// New creates a Verifier talking to the given RPC endpoint.
// network is the identifier payment proofs must declare (e.g. base-mainnet).
func New(rpcURL, network string) (*Verifier, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, err
	}

	return &Verifier{client: client, network: network}, nil
}

// VerifySignature recovers the signer of an EIP-191 personal message and
// compares it to claimedAddress, case-insensitively. V is accepted in both
// the 27/28 and 0/1 encodings.
func (v *Verifier) VerifySignature(message, signature, claimedAddress string) bool {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}

	sigCopy := make([]byte, crypto.SignatureLength)
	copy(sigCopy, sig)
	if sigCopy[crypto.RecoveryIDOffset] >= 27 {
		sigCopy[crypto.RecoveryIDOffset] -= 27
	}
	if sigCopy[crypto.RecoveryIDOffset] > 1 {
		return false
	}

	hash := accounts.TextHash([]byte(message))

	pubKey, err := crypto.SigToPub(hash, sigCopy)
	if err != nil {
		return false
	}

	recovered := crypto.PubkeyToAddress(*pubKey)

	return strings.EqualFold(recovered.Hex(), claimedAddress)
}

// VerifyPayment confirms the referenced transaction is findable on the declared
// network. Recipient, amount and asset are NOT checked: a hardened verifier
// must decode the ERC-20 transfer log and compare them against expectedTo and
// expectedAmount before trusting the proof.
func (v *Verifier) VerifyPayment(ctx context.Context, proof *models.PaymentProof, expectedTo string, expectedAmount float64) bool {
	if proof == nil || proof.TxHash == "" {
		return false
	}
	if proof.Network != v.network {
		logger.Log.Debug("payment proof declares unexpected network",
			zap.String("network", proof.Network),
			zap.String("expected", v.network))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, paymentLookupTimeout)
	defer cancel()

	tx, _, err := v.client.TransactionByHash(ctx, common.HexToHash(proof.TxHash))
	if err != nil || tx == nil {
		logger.Log.Debug("transaction lookup failed",
			zap.String("tx_hash", proof.TxHash),
			zap.Error(err))
		return false
	}

	return true
}
