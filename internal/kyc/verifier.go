// Package kyc verifies off-chain purchase authorizations.
//
// The KYC authority signs SHA256 over the tightly packed tuple
//
//	"Eidoo icoengine authorization" || saleAddress || buyerAddress ||
//	uint64(buyerID) || uint256(maxAmount)
//
// with a secp256k1 key whose address is registered in the signer set at
// construction. The verifier recovers the signing address and checks set
// membership. It is stateless and never returns an error to callers:
// any recovery failure is simply a denied authorization.
package kyc

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"crowdgate/pkg/domain"
	dErrors "crowdgate/pkg/domain-errors"
)

// authorizationTag is the fixed domain tag prepended to every signed message.
const authorizationTag = "Eidoo icoengine authorization"

// Signature is the three-part recoverable signature supplied by the buyer.
// V follows the on-chain convention (27 or 28); the raw recovery id (0 or 1)
// is accepted too.
type Signature struct {
	V uint8
	R [32]byte
	S [32]byte
}

// Verifier checks purchase authorizations against a fixed signer set.
type Verifier struct {
	signers map[common.Address]struct{}
}

// NewVerifier builds a verifier over a non-empty signer set.
func NewVerifier(signers []common.Address) (*Verifier, error) {
	if len(signers) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one KYC signer is required")
	}
	set := make(map[common.Address]struct{}, len(signers))
	for _, s := range signers {
		if s == domain.ZeroAddress {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "KYC signer must not be the zero address")
		}
		set[s] = struct{}{}
	}
	return &Verifier{signers: set}, nil
}

// IsSigner reports whether addr is a registered KYC signer.
func (v *Verifier) IsSigner(addr common.Address) bool {
	_, ok := v.signers[addr]
	return ok
}

// Verify reports whether sig is a valid authorization for buyer to
// participate in the sale identified by saleAddr. False on any recovery
// failure or unregistered signer.
func (v *Verifier) Verify(saleAddr, buyer common.Address, buyerID domain.BuyerID, maxAmount *big.Int, sig Signature) bool {
	hash, ok := AuthorizationHash(saleAddr, buyer, buyerID, maxAmount)
	if !ok {
		return false
	}

	recovered, ok := recoverSigner(hash, sig)
	if !ok {
		return false
	}
	return v.IsSigner(recovered)
}

// AuthorizationHash computes the message hash the KYC authority signs.
// ok is false when maxAmount does not fit an unsigned 256-bit integer.
func AuthorizationHash(saleAddr, buyer common.Address, buyerID domain.BuyerID, maxAmount *big.Int) ([32]byte, bool) {
	if maxAmount == nil || maxAmount.Sign() < 0 || maxAmount.BitLen() > 256 {
		return [32]byte{}, false
	}

	var id [8]byte
	binary.BigEndian.PutUint64(id[:], uint64(buyerID))

	var max [32]byte
	maxAmount.FillBytes(max[:])

	h := sha256.New()
	h.Write([]byte(authorizationTag))
	h.Write(saleAddr.Bytes())
	h.Write(buyer.Bytes())
	h.Write(id[:])
	h.Write(max[:])

	var hash [32]byte
	h.Sum(hash[:0])
	return hash, true
}

func recoverSigner(hash [32]byte, sig Signature) (common.Address, bool) {
	recID := sig.V
	if recID >= 27 {
		recID -= 27
	}
	if recID > 1 {
		return common.Address{}, false
	}

	raw := make([]byte, 65)
	copy(raw[:32], sig.R[:])
	copy(raw[32:64], sig.S[:])
	raw[64] = recID

	pub, err := crypto.SigToPub(hash[:], raw)
	if err != nil {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(*pub), true
}
