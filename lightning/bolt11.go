package lightning

import (
	"fmt"

	decodepay "github.com/nbd-wtf/ln-decodepay"

	"github.com/liquidityos/lnescrow/domain"
)

// DecodedInvoice is the normalized subset of a BOLT11 invoice's contents
// the orchestrator needs: canonical payment hash, whole-sat amount, and an
// optional timestamp/expiry pair (spec §6.3).
type DecodedInvoice struct {
	PaymentHash domain.Hash
	AmountSats  uint64
	CreatedAt   int64
	Expiry      int64
}

// DecodeBolt11 decodes bolt11 via github.com/nbd-wtf/ln-decodepay and
// validates it carries a positive, whole-satoshi amount, per spec §6.3.
func DecodeBolt11(bolt11 string) (DecodedInvoice, error) {
	decoded, err := decodepay.Decodepay(bolt11)
	if err != nil {
		return DecodedInvoice{}, fmt.Errorf("lightning: decode bolt11: %w", err)
	}

	hash, err := domain.CanonicalHash(decoded.PaymentHash)
	if err != nil {
		return DecodedInvoice{}, fmt.Errorf("lightning: bolt11 payment hash: %w", err)
	}

	if decoded.MSatoshi <= 0 {
		return DecodedInvoice{}, domain.ErrInvoiceMissingAmount
	}
	if decoded.MSatoshi%1000 != 0 {
		return DecodedInvoice{}, domain.ErrFractionalSats
	}

	return DecodedInvoice{
		PaymentHash: hash,
		AmountSats:  uint64(decoded.MSatoshi / 1000),
		CreatedAt:   int64(decoded.CreatedAt),
		Expiry:      int64(decoded.Expiry),
	}, nil
}
