// Package lightning drives hold invoices and payments on an lnd node.
package lightning

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/invoicesrpc"
	"github.com/lightningnetwork/lnd/macaroons"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"gopkg.in/macaroon.v2"
)

// ErrPaymentFailed carries lnd's payment_error for a synchronous payment.
var ErrPaymentFailed = errors.New("lightning: payment failed")

type Config struct {
	Host         string
	TLSCertPath  string
	MacaroonPath string
}

type lightningClient interface {
	GetInfo(ctx context.Context, in *lnrpc.GetInfoRequest, opts ...grpc.CallOption) (*lnrpc.GetInfoResponse, error)
	SendPaymentSync(ctx context.Context, in *lnrpc.SendRequest, opts ...grpc.CallOption) (*lnrpc.SendResponse, error)
}

type invoicesClient interface {
	AddHoldInvoice(ctx context.Context, in *invoicesrpc.AddHoldInvoiceRequest, opts ...grpc.CallOption) (*invoicesrpc.AddHoldInvoiceResp, error)
	SettleInvoice(ctx context.Context, in *invoicesrpc.SettleInvoiceMsg, opts ...grpc.CallOption) (*invoicesrpc.SettleInvoiceResp, error)
}

type Wallet struct {
	ln       lightningClient
	invoices invoicesClient
	conn     *grpc.ClientConn
}

// Dial connects to lnd with its TLS certificate and an admin macaroon.
func Dial(cfg Config) (*Wallet, error) {
	creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertPath, "")
	if err != nil {
		return nil, fmt.Errorf("lightning: load tls cert: %w", err)
	}
	macBytes, err := os.ReadFile(cfg.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("lightning: read macaroon: %w", err)
	}
	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, fmt.Errorf("lightning: decode macaroon: %w", err)
	}
	macCreds, err := macaroons.NewMacaroonCredential(mac)
	if err != nil {
		return nil, fmt.Errorf("lightning: macaroon credential: %w", err)
	}

	conn, err := grpc.Dial(cfg.Host,
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(macCreds),
	)
	if err != nil {
		return nil, fmt.Errorf("lightning: dial %s: %w", cfg.Host, err)
	}
	w := newWallet(lnrpc.NewLightningClient(conn), invoicesrpc.NewInvoicesClient(conn))
	w.conn = conn
	return w, nil
}

func newWallet(ln lightningClient, invoices invoicesClient) *Wallet {
	return &Wallet{ln: ln, invoices: invoices}
}

func (w *Wallet) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Close()
}

// PublicKey returns the node's identity key, hex encoded.
func (w *Wallet) PublicKey(ctx context.Context) (string, error) {
	info, err := w.ln.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return "", fmt.Errorf("lightning: getinfo: %w", err)
	}
	return info.IdentityPubkey, nil
}

func (w *Wallet) AddHoldInvoice(ctx context.Context, amount btcutil.Amount, secretHash []byte, expiry, cltvExpiry uint32) (string, error) {
	resp, err := w.invoices.AddHoldInvoice(ctx, &invoicesrpc.AddHoldInvoiceRequest{
		Hash:       secretHash,
		Value:      int64(amount),
		Expiry:     int64(expiry),
		CltvExpiry: uint64(cltvExpiry),
	})
	if err != nil {
		return "", fmt.Errorf("lightning: add hold invoice: %w", err)
	}
	return resp.PaymentRequest, nil
}

// SendPayment pays a hold invoice by hash and blocks until lnd reports the
// result. The returned preimage is empty while the invoice is held.
func (w *Wallet) SendPayment(ctx context.Context, to []byte, amount btcutil.Amount, secretHash []byte, finalCltvDelta uint32) ([]byte, error) {
	resp, err := w.ln.SendPaymentSync(ctx, &lnrpc.SendRequest{
		Dest:           to,
		Amt:            int64(amount),
		PaymentHash:    secretHash,
		FinalCltvDelta: int32(finalCltvDelta),
	})
	if err != nil {
		return nil, fmt.Errorf("lightning: send payment: %w", err)
	}
	if resp.PaymentError != "" {
		return nil, fmt.Errorf("%w: %s", ErrPaymentFailed, resp.PaymentError)
	}
	log.Debug().Hex("hash", secretHash).Int64("amount", int64(amount)).Msg("lightning payment sent")
	return resp.PaymentPreimage, nil
}

func (w *Wallet) SettleInvoice(ctx context.Context, secret []byte) error {
	if _, err := w.invoices.SettleInvoice(ctx, &invoicesrpc.SettleInvoiceMsg{Preimage: secret}); err != nil {
		return fmt.Errorf("lightning: settle invoice: %w", err)
	}
	return nil
}
