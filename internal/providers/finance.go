// ABOUTME: Finance provider: invoice queries and payment recording
// ABOUTME: Requires finance-family scopes; payment recording is audited

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jojopeligroso/MyCastle-sub007/internal/auth"
	"github.com/jojopeligroso/MyCastle-sub007/internal/registry"
	"github.com/jojopeligroso/MyCastle-sub007/internal/store"
)

type financeHandlers struct {
	store store.Store
}

// RegisterFinance adds the finance capabilities and resources.
func RegisterFinance(reg *registry.Registry, st store.Store) error {
	f := &financeHandlers{store: st}

	tools := []*registry.Descriptor{
		{
			Name:           "finance:list_invoices",
			Description:    "List invoices, optionally filtered by status",
			RequiredScopes: []string{"finance:invoices"},
			InputSchema:    json.RawMessage(`{"type":"object","properties":{"status":{"type":"string","enum":["open","partial","paid"]},"limit":{"type":"integer"}}}`),
			Handler:        f.listInvoices,
		},
		{
			Name:           "finance:get_invoice",
			Description:    "Fetch a single invoice with its payments",
			RequiredScopes: []string{"finance:invoices"},
			InputSchema:    json.RawMessage(`{"type":"object","properties":{"invoice_id":{"type":"string"}},"required":["invoice_id"]}`),
			Handler:        f.getInvoice,
		},
		{
			Name:           "finance:record_payment",
			Description:    "Record a payment against an invoice",
			RequiredScopes: []string{"finance:payments"},
			InputSchema:    json.RawMessage(`{"type":"object","properties":{"invoice_id":{"type":"string"},"amount_cents":{"type":"integer"},"method":{"type":"string"},"reference":{"type":"string"}},"required":["invoice_id","amount_cents","method"]}`),
			Mutating:       true,
			Handler:        f.recordPayment,
		},
	}
	for _, d := range tools {
		if err := reg.Register(d); err != nil {
			return err
		}
	}

	resources := []*registry.Resource{
		{
			URI:            "mycastle://finance/invoices",
			Name:           "Invoices",
			Description:    "All invoices, newest first",
			MimeType:       "application/json",
			RequiredScopes: []string{"finance:invoices"},
			Fetch:          f.invoicesResource,
		},
		{
			URI:            "mycastle://finance/outstanding",
			Name:           "Outstanding balances",
			Description:    "Unpaid invoices and the total outstanding amount",
			MimeType:       "application/json",
			RequiredScopes: []string{"finance:invoices"},
			Fetch:          f.outstandingResource,
		},
	}
	for _, r := range resources {
		if err := reg.RegisterResource(r); err != nil {
			return err
		}
	}
	return nil
}

func (f *financeHandlers) listInvoices(ctx context.Context, input json.RawMessage, _ *auth.Identity) (any, error) {
	var in struct {
		Status string `json:"status"`
		Limit  int    `json:"limit"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	switch in.Status {
	case "", store.InvoiceStatusOpen, store.InvoiceStatusPartial, store.InvoiceStatusPaid:
	default:
		return nil, fmt.Errorf("%w: unknown invoice status %q", registry.ErrInvalidInput, in.Status)
	}

	invoices, err := f.store.ListInvoices(ctx, in.Status, in.Limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return map[string]any{"invoices": invoices, "count": len(invoices)}, nil
}

func (f *financeHandlers) getInvoice(ctx context.Context, input json.RawMessage, _ *auth.Identity) (any, error) {
	var in struct {
		InvoiceID string `json:"invoice_id"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.InvoiceID == "" {
		return nil, fmt.Errorf("%w: invoice_id is required", registry.ErrInvalidInput)
	}

	invoice, err := f.store.GetInvoice(ctx, in.InvoiceID)
	if err != nil {
		return nil, storeErr(err)
	}
	payments, err := f.store.ListPayments(ctx, in.InvoiceID)
	if err != nil {
		return nil, storeErr(err)
	}
	return map[string]any{
		"invoice":           invoice,
		"payments":          payments,
		"outstanding_cents": invoice.Outstanding(),
	}, nil
}

func (f *financeHandlers) recordPayment(ctx context.Context, input json.RawMessage, _ *auth.Identity) (any, error) {
	var in struct {
		InvoiceID   string `json:"invoice_id"`
		AmountCents int64  `json:"amount_cents"`
		Method      string `json:"method"`
		Reference   string `json:"reference"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.InvoiceID == "" {
		return nil, fmt.Errorf("%w: invoice_id is required", registry.ErrInvalidInput)
	}
	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount_cents must be positive", registry.ErrInvalidInput)
	}
	if in.Method == "" {
		return nil, fmt.Errorf("%w: method is required", registry.ErrInvalidInput)
	}

	payment := &store.Payment{
		ID:          uuid.New().String(),
		InvoiceID:   in.InvoiceID,
		AmountCents: in.AmountCents,
		Method:      in.Method,
		Reference:   in.Reference,
		ReceivedAt:  time.Now().UTC(),
	}
	invoice, err := f.store.RecordPayment(ctx, payment)
	if err != nil {
		return nil, storeErr(err)
	}
	return map[string]any{
		"payment": payment,
		"invoice": invoice,
	}, nil
}

func (f *financeHandlers) invoicesResource(ctx context.Context, _ *auth.Identity) (*registry.ResourceContent, error) {
	invoices, err := f.store.ListInvoices(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	text, err := jsonText(map[string]any{"invoices": invoices})
	if err != nil {
		return nil, err
	}
	return &registry.ResourceContent{
		URI:      "mycastle://finance/invoices",
		MimeType: "application/json",
		Text:     text,
	}, nil
}

func (f *financeHandlers) outstandingResource(ctx context.Context, _ *auth.Identity) (*registry.ResourceContent, error) {
	var unpaid []*store.Invoice
	var totalCents int64
	for _, status := range []string{store.InvoiceStatusOpen, store.InvoiceStatusPartial} {
		invoices, err := f.store.ListInvoices(ctx, status, 0)
		if err != nil {
			return nil, err
		}
		for _, inv := range invoices {
			unpaid = append(unpaid, inv)
			totalCents += inv.Outstanding()
		}
	}
	text, err := jsonText(map[string]any{
		"invoices":                unpaid,
		"total_outstanding_cents": totalCents,
	})
	if err != nil {
		return nil, err
	}
	return &registry.ResourceContent{
		URI:      "mycastle://finance/outstanding",
		MimeType: "application/json",
		Text:     text,
	}, nil
}
