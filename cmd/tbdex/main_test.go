package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/tbdex-go/pkg/dids"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
	"github.com/tbd54566975/tbdex-go/pkg/tbdex"
	"github.com/tbd54566975/tbdex-go/pkg/tbdex/exchange"
)

func runCommand(t *testing.T, in string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), append([]string{"-config", ""}, args...), strings.NewReader(in), &out)
	return out.String(), err
}

func createPortableDID(t *testing.T, dir string, args ...string) (string, dids.PortableDID) {
	t.Helper()
	out, err := runCommand(t, "", append([]string{"did", "create"}, args...)...)
	require.NoError(t, err)

	var portable dids.PortableDID
	require.NoError(t, json.Unmarshal([]byte(out), &portable))
	require.NoError(t, os.MkdirAll(dir, 0700))
	path := filepath.Join(dir, "portable.json")
	require.NoError(t, os.WriteFile(path, []byte(out), 0600))
	return path, portable
}

func TestDIDCommands(t *testing.T) {
	t.Run("create and resolve did:jwk", func(tt *testing.T) {
		_, portable := createPortableDID(tt, tt.TempDir(), "-method", "jwk", "-alg", "ES256K")
		assert.True(tt, strings.HasPrefix(portable.URI, "did:jwk:"))
		assert.Len(tt, portable.PrivateKeys, 1)

		out, err := runCommand(tt, "", "did", "resolve", portable.URI)
		require.NoError(tt, err)
		var result didcore.ResolutionResult
		require.NoError(tt, json.Unmarshal([]byte(out), &result))
		require.NotNil(tt, result.Document)
		assert.Equal(tt, portable.URI, result.Document.ID)
	})

	t.Run("create did:key", func(tt *testing.T) {
		_, portable := createPortableDID(tt, tt.TempDir(), "-method", "key")
		assert.True(tt, strings.HasPrefix(portable.URI, "did:key:z6Mk"))
	})

	t.Run("did:web needs an origin", func(tt *testing.T) {
		_, err := runCommand(tt, "", "did", "create", "-method", "web")
		assert.Error(tt, err)
	})

	t.Run("unsupported algorithm", func(tt *testing.T) {
		_, err := runCommand(tt, "", "did", "create", "-alg", "RS256")
		assert.Error(tt, err)
	})

	t.Run("resolution failure", func(tt *testing.T) {
		out, err := runCommand(tt, "", "did", "resolve", "did:unknown:123")
		assert.ErrorIs(tt, err, didcore.ErrResolution)
		assert.Contains(tt, out, string(didcore.ResolutionErrorMethodNotSupported))
	})
}

func TestExchangeCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TBDEX_EXCHANGES_STORAGE", "bolt")
	t.Setenv("TBDEX_EXCHANGES_PATH", filepath.Join(dir, "exchanges.db"))

	customerPath, customer := createPortableDID(t, filepath.Join(dir, "customer"))
	pfiPath, pfi := createPortableDID(t, filepath.Join(dir, "pfi"), "-alg", "ES256K")

	sign := func(tt *testing.T, didPath string, m *tbdex.Message) string {
		raw, err := json.Marshal(m)
		require.NoError(tt, err)
		signed, err := runCommand(tt, string(raw), "sign", "-did", didPath)
		require.NoError(tt, err)
		return signed
	}

	rfq, err := tbdex.NewMessage(customer.URI, pfi.URI, tbdex.RFQ{
		OfferingID: "offering_123",
		Payin:      tbdex.SelectedPayinMethod{Amount: "10.00", Kind: "USD_BANK_TRANSFER"},
		Payout:     tbdex.SelectedPayoutMethod{Kind: "BTC_ADDRESS"},
	})
	require.NoError(t, err)
	signedRFQ := sign(t, customerPath, rfq)

	t.Run("add an rfq", func(tt *testing.T) {
		out, err := runCommand(tt, signedRFQ, "exchange", "add")
		require.NoError(tt, err)
		var summary exchangeSummary
		require.NoError(tt, json.Unmarshal([]byte(out), &summary))
		assert.Equal(tt, rfq.Metadata.ID, summary.ID)
		assert.Equal(tt, 1, summary.Messages)
		assert.ElementsMatch(tt, []tbdex.MessageKind{tbdex.KindQuote, tbdex.KindClose}, summary.Next)
	})

	t.Run("add a quote", func(tt *testing.T) {
		quote, err := tbdex.NewMessage(pfi.URI, customer.URI, tbdex.Quote{
			ExpiresAt: "2030-01-01T00:00:00.000Z",
			Payin:     tbdex.QuoteDetails{CurrencyCode: "USD", Amount: "10.00"},
			Payout:    tbdex.QuoteDetails{CurrencyCode: "BTC", Amount: "0.0002"},
		}, tbdex.WithExchangeID(rfq.Metadata.ID))
		require.NoError(tt, err)

		out, err := runCommand(tt, sign(tt, pfiPath, quote), "exchange", "add")
		require.NoError(tt, err)
		assert.Contains(tt, out, `"messages":2`)
	})

	t.Run("unsigned messages are rejected", func(tt *testing.T) {
		order, err := tbdex.NewMessage(customer.URI, pfi.URI, tbdex.Order{}, tbdex.WithExchangeID(rfq.Metadata.ID))
		require.NoError(tt, err)
		raw, err := json.Marshal(order)
		require.NoError(tt, err)
		_, err = runCommand(tt, string(raw), "exchange", "add")
		assert.ErrorIs(tt, err, tbdex.ErrMissingSignature)
	})

	t.Run("out of order messages are rejected", func(tt *testing.T) {
		status, err := tbdex.NewMessage(pfi.URI, customer.URI, tbdex.OrderStatus{OrderStatus: "PAYOUT_SENT"},
			tbdex.WithExchangeID(rfq.Metadata.ID))
		require.NoError(tt, err)
		_, err = runCommand(tt, sign(tt, pfiPath, status), "exchange", "add")
		assert.ErrorIs(tt, err, exchange.ErrInvalidNext)
	})

	t.Run("show and list", func(tt *testing.T) {
		out, err := runCommand(tt, "", "exchange", "show", rfq.Metadata.ID)
		require.NoError(tt, err)
		var messages []*tbdex.Message
		require.NoError(tt, json.Unmarshal([]byte(out), &messages))
		require.Len(tt, messages, 2)
		assert.Equal(tt, tbdex.KindRFQ, messages[0].Metadata.Kind)
		assert.Equal(tt, tbdex.KindQuote, messages[1].Metadata.Kind)

		out, err = runCommand(tt, "", "exchange", "list")
		require.NoError(tt, err)
		var summaries []exchangeSummary
		require.NoError(tt, json.Unmarshal([]byte(out), &summaries))
		require.Len(tt, summaries, 1)
		assert.Equal(tt, messages[1].Metadata.ID, summaries[0].Latest)
	})

	t.Run("unknown exchange", func(tt *testing.T) {
		_, err := runCommand(tt, "", "exchange", "show", "rfq_unknown")
		assert.ErrorIs(tt, err, exchange.ErrNotFound)
	})

	t.Run("resources cannot be added", func(tt *testing.T) {
		r, err := tbdex.NewResource(pfi.URI, tbdex.Balance{CurrencyCode: "USD", Available: "5"})
		require.NoError(tt, err)
		raw, err := json.Marshal(r)
		require.NoError(tt, err)
		_, err = runCommand(tt, string(raw), "exchange", "add")
		assert.Error(tt, err)
	})
}

func TestEnvelopeCommands(t *testing.T) {
	dir := t.TempDir()
	didPath, portable := createPortableDID(t, dir)

	m, err := tbdex.NewMessage(portable.URI, "did:web:pfi.example.com", tbdex.RFQ{
		OfferingID: "offering_123",
		Payin:      tbdex.SelectedPayinMethod{Amount: "10.00", Kind: "USD_BANK_TRANSFER"},
		Payout:     tbdex.SelectedPayoutMethod{Kind: "BTC_ADDRESS"},
	})
	require.NoError(t, err)
	unsigned, err := json.Marshal(m)
	require.NoError(t, err)
	messagePath := filepath.Join(dir, "rfq.json")
	require.NoError(t, os.WriteFile(messagePath, unsigned, 0600))

	t.Run("sign then verify a message", func(tt *testing.T) {
		signed, err := runCommand(tt, "", "sign", "-did", didPath, messagePath)
		require.NoError(tt, err)

		parsed, err := tbdex.ParseMessage([]byte(signed))
		require.NoError(tt, err)
		assert.NotEmpty(tt, parsed.Signature)

		out, err := runCommand(tt, signed, "verify")
		require.NoError(tt, err)
		var v verification
		require.NoError(tt, json.Unmarshal([]byte(out), &v))
		assert.True(tt, v.Verified)
		assert.Equal(tt, m.Metadata.ID, v.ID)
		assert.Equal(tt, "rfq", v.Kind)
	})

	t.Run("tampered message", func(tt *testing.T) {
		signed, err := runCommand(tt, "", "sign", "-did", didPath, messagePath)
		require.NoError(tt, err)

		tampered := strings.Replace(signed, `"10.00"`, `"99.00"`, 1)
		_, err = runCommand(tt, tampered, "verify")
		assert.ErrorIs(tt, err, tbdex.ErrInvalidSignature)
	})

	t.Run("sign and verify a resource", func(tt *testing.T) {
		r, err := tbdex.NewResource(portable.URI, tbdex.Balance{CurrencyCode: "USD", Available: "5"})
		require.NoError(tt, err)
		raw, err := json.Marshal(r)
		require.NoError(tt, err)

		signed, err := runCommand(tt, string(raw), "sign", "-did", didPath)
		require.NoError(tt, err)
		out, err := runCommand(tt, signed, "verify")
		require.NoError(tt, err)
		assert.Contains(tt, out, `"verified":true`)
	})

	t.Run("sign and verify with a secp256k1 did", func(tt *testing.T) {
		k1Path, k1 := createPortableDID(tt, tt.TempDir(), "-method", "jwk", "-alg", "ES256K")
		r, err := tbdex.NewResource(k1.URI, tbdex.Balance{CurrencyCode: "USD", Available: "5"})
		require.NoError(tt, err)
		raw, err := json.Marshal(r)
		require.NoError(tt, err)

		signed, err := runCommand(tt, string(raw), "sign", "-did", k1Path)
		require.NoError(tt, err)
		out, err := runCommand(tt, signed, "verify")
		require.NoError(tt, err)
		assert.Contains(tt, out, `"verified":true`)
	})

	t.Run("envelopes are told apart by kind", func(tt *testing.T) {
		e, err := parseEnvelope(unsigned)
		require.NoError(tt, err)
		_, ok := e.(messageEnvelope)
		assert.True(tt, ok)

		r, err := tbdex.NewResource(portable.URI, tbdex.Balance{CurrencyCode: "USD", Available: "5"})
		require.NoError(tt, err)
		raw, err := json.Marshal(r)
		require.NoError(tt, err)
		e, err = parseEnvelope(raw)
		require.NoError(tt, err)
		re, ok := e.(resourceEnvelope)
		require.True(tt, ok)
		id, kind, from := re.header()
		assert.Equal(tt, r.Metadata.ID, id)
		assert.Equal(tt, "balance", kind)
		assert.Equal(tt, portable.URI, from)
	})

	t.Run("digest", func(tt *testing.T) {
		out, err := runCommand(tt, string(unsigned), "digest")
		require.NoError(tt, err)
		digest, err := m.Digest()
		require.NoError(tt, err)
		assert.Equal(tt, hex.EncodeToString(digest), strings.TrimSpace(out))
	})

	t.Run("usage errors", func(tt *testing.T) {
		_, err := runCommand(tt, "")
		assert.ErrorIs(tt, err, errUsage)
		_, err = runCommand(tt, "", "did")
		assert.ErrorIs(tt, err, errUsage)
		_, err = runCommand(tt, "", "sign", messagePath)
		assert.Error(tt, err)
	})
}
