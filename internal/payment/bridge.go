// internal/payment/bridge.go
//
// Payment bridge: turns "fund this job's escrow" into a payment intent, a
// hosted-checkout handoff, and an escrow re-fetch. The bridge never claims
// authoritative success — deposits are confirmed by the backend's webhook,
// so only the re-fetched escrow state is trusted.

package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/trustwork/trustwork/internal/api"
	"github.com/trustwork/trustwork/internal/lifecycle"
	"github.com/trustwork/trustwork/internal/logbook"
)

// ErrCancelled reports that the user abandoned the checkout. Funding may
// still be pending server-side: a client-side cancel signal is not proof
// the deposit failed, so no local job state is touched.
var ErrCancelled = errors.New("payment: checkout closed before completing — if you paid, the deposit will be confirmed shortly")

// Result is the widget's terminal signal.
type Result int

const (
	ResultSuccess Result = iota
	ResultCancelled
)

// Widget presents a checkout for an intent and blocks until the user
// completes or abandons it, or ctx is done.
type Widget interface {
	Open(ctx context.Context, intent api.CheckoutIntent) (Result, error)
}

// Initiator requests payment intents (the gateway client).
type Initiator interface {
	InitiateCheckout(ctx context.Context, jobID int) (*api.CheckoutIntent, error)
}

// EscrowRefresher is the controller's escrow re-fetch path.
type EscrowRefresher interface {
	Escrow(ctx context.Context, jobID int) (*api.EscrowInfo, error)
}

// Bridge wires the three collaborators together.
type Bridge struct {
	initiator Initiator
	escrow    EscrowRefresher
	widget    Widget
	log       *logbook.Logbook
}

// NewBridge creates a bridge. log may be nil.
func NewBridge(initiator Initiator, escrow EscrowRefresher, widget Widget, log *logbook.Logbook) *Bridge {
	return &Bridge{
		initiator: initiator,
		escrow:    escrow,
		widget:    widget,
		log:       log.With("payment"),
	}
}

// Fund runs the deposit sequence for a job: intent → widget → escrow
// re-fetch. Widget cancel/error surfaces as a user-visible error without
// mutating any job state.
func (b *Bridge) Fund(ctx context.Context, jobID int) error {
	intent, err := b.initiator.InitiateCheckout(ctx, jobID)
	if err != nil {
		return fmt.Errorf("starting payment: %w", err)
	}
	b.log.Info("checkout opened for job %d (ref %s, %d %s subunits)",
		jobID, intent.Reference, intent.AmountSubunits, intent.Currency)

	result, err := b.widget.Open(ctx, *intent)
	if err != nil {
		b.log.Warn("checkout for job %d failed: %v", jobID, err)
		return fmt.Errorf("payment could not complete: %w", err)
	}
	if result == ResultCancelled {
		b.log.Info("checkout for job %d closed by user", jobID)
		return ErrCancelled
	}

	// The widget's success callback is advisory; the webhook-confirmed
	// escrow record is the source of truth.
	if _, err := b.escrow.Escrow(ctx, jobID); err != nil {
		if errors.Is(err, lifecycle.ErrNoEscrow) {
			b.log.Info("deposit for job %d reported, awaiting webhook confirmation", jobID)
			return nil
		}
		b.log.Warn("escrow refresh after funding job %d: %v", jobID, err)
		return nil
	}
	b.log.Info("escrow refreshed for job %d", jobID)
	return nil
}
