package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slotta-engine/internal/model"
	"github.com/iliyamo/slotta-engine/internal/payment"
	"github.com/iliyamo/slotta-engine/internal/repository"
)

func TestLedgerApply_RejectsBadEntries(t *testing.T) {
	f := newFixture(t)
	client := model.ClientOwner(7)
	anna := model.ProviderOwner(providerAnna)

	cases := []struct {
		name  string
		entry Entry
		want  error
	}{
		{"release with amount", Entry{Owner: client, Type: model.TxRelease, AmountCents: 5}, ErrInvalidInput},
		{"wallet credit to provider", Entry{Owner: anna, Type: model.TxWalletCredit, AmountCents: 5}, ErrInvalidInput},
		{"negative wallet credit", Entry{Owner: client, Type: model.TxWalletCredit, AmountCents: -5}, ErrInvalidInput},
		{"compensation to client", Entry{Owner: client, Type: model.TxCaptureCompensation, AmountCents: 5}, ErrInvalidInput},
		{"payout from client", Entry{Owner: client, Type: model.TxPayout, AmountCents: -5}, ErrInvalidInput},
		{"unknown type", Entry{Owner: anna, Type: "bonus", AmountCents: 5}, ErrInvalidInput},
		{"no owner", Entry{Owner: model.ProviderOwner(0), Type: model.TxFee, AmountCents: -25}, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
				_, err := f.ledger.Apply(ctx, tx, tc.entry)
				return err
			})
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, f.store.st.txs)
}

func TestLedgerApply_ClientWalletNeverNegative(t *testing.T) {
	f := newFixture(t)
	client := model.ClientOwner(7)
	apply := func(e Entry) error {
		return f.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			_, err := f.ledger.Apply(ctx, tx, e)
			return err
		})
	}
	require.NoError(t, apply(Entry{Owner: client, Type: model.TxWalletCredit, AmountCents: 100}))

	// No debit type exists for clients.
	for _, e := range []Entry{
		{Owner: client, Type: model.TxFee, AmountCents: -200},
		{Owner: client, Type: model.TxPayout, AmountCents: -100},
		{Owner: client, Type: model.TxWalletCredit, AmountCents: -1},
	} {
		assert.ErrorIs(t, apply(e), ErrInvalidInput, "%+v", e)
	}
	assert.Equal(t, int64(100), f.balance(client))
}

func TestLedgerApply_ProviderMayDipByFee(t *testing.T) {
	f := newFixture(t)
	anna := model.ProviderOwner(providerAnna)
	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		_, err := f.ledger.Apply(ctx, tx, Entry{Owner: anna, Type: model.TxFee, AmountCents: -25})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-25), f.balance(anna))
	f.requireReconciled(t)
}

func TestLedgerReconcile_DetectsDrift(t *testing.T) {
	f := newFixture(t)
	anna := model.ProviderOwner(providerAnna)
	f.credit(t, providerAnna, 500)
	f.store.st.balances[anna] = 499

	rec, err := f.ledger.Reconcile(context.Background(), anna)
	require.NoError(t, err)
	assert.False(t, rec.OK)
	assert.Equal(t, int64(499), rec.BalanceCents)
	assert.Equal(t, int64(500), rec.LedgerCents)

	w, err := f.ledger.Wallet(context.Background(), providerAnna, 10)
	require.NoError(t, err)
	assert.False(t, w.Reconciled)
	// The ledger sum is authoritative.
	assert.Equal(t, int64(500), w.BalanceCents)
	assert.Len(t, w.Transactions, 1)
}

func TestMetrics_RegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.IncGateway("capture", nil)
	m.IncGateway("capture", payment.ErrCardDeclined)
	m.AddLedger(string(model.TxFee), -25)
	m.AddLedger(string(model.TxCaptureCompensation), 3510)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayCalls.WithLabelValues("capture", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayCalls.WithLabelValues("capture", "error")))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.LedgerCents.WithLabelValues("fee")))
	assert.Equal(t, 3510.0, testutil.ToFloat64(m.LedgerCents.WithLabelValues("capture-compensation")))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.IncTransition("complete", "ok")
		nilMetrics.IncPayout("sent")
	})
}
