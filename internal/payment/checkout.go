// internal/payment/checkout.go
//
// Default Widget: hands the intent to Paystack's hosted checkout in the
// system browser and waits for the redirect to land on a one-shot local
// callback listener. The listener reports success or cancel via its routes;
// it never decides whether money moved.

package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trustwork/trustwork/internal/api"
)

const checkoutBaseURL = "https://checkout.paystack.com/"

// ErrCheckoutBusy rejects overlapping checkouts; the listener is a
// process-wide singleton.
var ErrCheckoutBusy = errors.New("payment: another checkout is already open")

// HostedCheckout opens the browser checkout and listens for the redirect.
type HostedCheckout struct {
	publicKey  string
	listenAddr string

	// openURL launches the user's browser; replaceable in tests.
	openURL func(rawurl string) error

	mu   sync.Mutex
	open bool
}

// NewHostedCheckout creates the default widget. publicKey is the Paystack
// public key from configuration; listenAddr is where the callback listener
// binds (loopback only).
func NewHostedCheckout(publicKey, listenAddr string) *HostedCheckout {
	h := &HostedCheckout{
		publicKey:  publicKey,
		listenAddr: listenAddr,
	}
	h.openURL = h.openBrowser
	return h
}

// Open implements Widget.
func (h *HostedCheckout) Open(ctx context.Context, intent api.CheckoutIntent) (Result, error) {
	if h.publicKey == "" {
		return ResultCancelled, errors.New("payment: paystack public key not configured (set paystack_public_key in config.yaml)")
	}

	h.mu.Lock()
	if h.open {
		h.mu.Unlock()
		return ResultCancelled, ErrCheckoutBusy
	}
	h.open = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.open = false
		h.mu.Unlock()
	}()

	listener, err := net.Listen("tcp", h.listenAddr)
	if err != nil {
		return ResultCancelled, fmt.Errorf("payment: callback listener: %w", err)
	}

	results := make(chan Result, 1)
	router := chi.NewRouter()
	router.Get("/callback/success", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><h3>Payment submitted.</h3><p>You can return to the terminal. The deposit is confirmed once the payment provider notifies TrustWork.</p></body></html>"))
		select {
		case results <- ResultSuccess:
		default:
		}
	})
	router.Get("/callback/cancel", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><h3>Checkout closed.</h3><p>No deposit was recorded in this session.</p></body></html>"))
		select {
		case results <- ResultCancelled:
		default:
		}
	})

	srv := &http.Server{Handler: router}
	go func() { _ = srv.Serve(listener) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := h.openURL(h.checkoutURL(intent)); err != nil {
		return ResultCancelled, fmt.Errorf("payment: opening browser: %w", err)
	}

	select {
	case res := <-results:
		return res, nil
	case <-ctx.Done():
		return ResultCancelled, ctx.Err()
	}
}

// checkoutURL builds the hosted-checkout handoff URL carrying the same
// parameters the inline widget takes: key, email, amount, reference,
// currency, plus the local redirect targets.
func (h *HostedCheckout) checkoutURL(intent api.CheckoutIntent) string {
	q := url.Values{}
	q.Set("key", h.publicKey)
	q.Set("email", intent.Email)
	q.Set("amount", fmt.Sprintf("%d", intent.AmountSubunits))
	q.Set("ref", intent.Reference)
	if intent.Currency != "" {
		q.Set("currency", intent.Currency)
	}
	q.Set("callback_url", "http://"+h.listenAddr+"/callback/success")
	q.Set("cancel_url", "http://"+h.listenAddr+"/callback/cancel")
	return checkoutBaseURL + "?" + q.Encode()
}

func (h *HostedCheckout) openBrowser(rawurl string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", rawurl).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", rawurl).Start()
	default:
		return exec.Command("xdg-open", rawurl).Start()
	}
}
