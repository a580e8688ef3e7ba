package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/suPer8Hu/ai-debate/internal/tokenstore"
)

// Checkout is the payment processor session the user is redirected to.
type Checkout struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type checkoutReq struct {
	Tier tokenstore.Tier `json:"tier"`
}

func (c *Client) CreateCheckout(ctx context.Context, tier tokenstore.Tier) (*Checkout, error) {
	const op = "create checkout"
	var out Checkout
	if err := c.postJSON(ctx, op, "/api/v1/payments/create-checkout", checkoutReq{Tier: tier}, &out); err != nil {
		return nil, err
	}
	if out.URL == "" && out.ID == "" {
		return nil, &Error{Op: op, Kind: ErrBackend, ServerMessage: "checkout response has neither id nor url"}
	}
	return &out, nil
}

type paymentStatusResp struct {
	Tier string `json:"tier"`
}

// PaymentStatus returns the tier the processor has confirmed for the user.
// A reply without a known tier is a backend error, never a downgrade.
func (c *Client) PaymentStatus(ctx context.Context) (tokenstore.Tier, error) {
	const op = "payment status"
	var out paymentStatusResp
	if err := c.get(ctx, op, "/api/v1/payments/status", &out); err != nil {
		return "", err
	}
	tier := tokenstore.Tier(strings.ToLower(strings.TrimSpace(out.Tier)))
	if !tier.Valid() {
		return "", &Error{Op: op, Kind: ErrBackend, ServerMessage: fmt.Sprintf("unknown tier %q in payment status", out.Tier)}
	}
	return tier, nil
}
