package lightning

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DepositDescriptionTagger issues deposit invoices on behalf of the credit
// bridge and tags each one's description with an HMAC-SHA256 of
// (credit_address, amount_sats, created_at), keyed on tag_secret (spec
// §6.6/§6.8). A CreditMonitor instance holding the same secret can later
// recompute the tag to recognize which of its node's invoices it issued,
// without needing a relational store. Grounded on the retrieval pack's own
// hmac.New(sha256.New, key) construction in NYDIG-OSS-lnmux's
// encodeStatelessData/decodeStatelessData pair.
type DepositDescriptionTagger struct {
	client Client
	secret []byte
}

// NewDepositDescriptionTagger builds a tagger bound to client, keyed with
// secret (spec §6.6's tag_secret, already length-validated by config.Load).
func NewDepositDescriptionTagger(client Client, secret []byte) *DepositDescriptionTagger {
	return &DepositDescriptionTagger{client: client, secret: secret}
}

// IssueDepositInvoice requests a new bolt11 invoice for creditAddress/
// amountSats from the Lightning node, with a unique label and a tagged
// description the CreditMonitor can later verify via VerifyTag.
func (t *DepositDescriptionTagger) IssueDepositInvoice(ctx context.Context, creditAddress string, amountSats uint64, expiry time.Duration) (InvoiceResponse, error) {
	now := time.Now().Unix()
	tag := t.Tag(creditAddress, amountSats, now)

	req := InvoiceRequest{
		AmountMsat:    amountSats * 1000,
		Label:         uuid.NewString(),
		Description:   fmt.Sprintf("lnescrow deposit:%s:%d:%d:%s", creditAddress, amountSats, now, tag),
		ExpirySeconds: int64(expiry.Seconds()),
	}
	return t.client.Invoice(ctx, req)
}

// Tag computes the hex-encoded HMAC-SHA256 of (creditAddress, amountSats,
// createdAt) under the tagger's secret.
func (t *DepositDescriptionTagger) Tag(creditAddress string, amountSats uint64, createdAt int64) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(creditAddress))

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], amountSats)
	mac.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(createdAt))
	mac.Write(buf[:])

	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyTag recomputes the HMAC for (creditAddress, amountSats, createdAt)
// and reports whether it matches tag, using constant-time comparison.
func (t *DepositDescriptionTagger) VerifyTag(creditAddress string, amountSats uint64, createdAt int64, tag string) bool {
	want := t.Tag(creditAddress, amountSats, createdAt)
	wantBytes, err := hex.DecodeString(want)
	if err != nil {
		return false
	}
	gotBytes, err := hex.DecodeString(tag)
	if err != nil {
		return false
	}
	return hmac.Equal(wantBytes, gotBytes)
}
