package tx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type beginFunc func(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)

func (f beginFunc) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return f(ctx, opts)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTx(ctx, nil), "nil tx keeps the context")
	_, ok := From(ctx)
	assert.False(t, ok)

	stored := &sql.Tx{}
	got, ok := From(WithTx(ctx, stored))
	assert.True(t, ok)
	assert.Same(t, stored, got)
}

func TestRunReusesTransactionOnContext(t *testing.T) {
	outer := &sql.Tx{}
	db := beginFunc(func(context.Context, *sql.TxOptions) (*sql.Tx, error) {
		t.Fatal("a new transaction must not be started")
		return nil, nil
	})

	var seen *sql.Tx
	err := Run(WithTx(context.Background(), outer), db, func(ctx context.Context) error {
		seen, _ = From(ctx)
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, outer, seen)
}

func TestRunBeginFailure(t *testing.T) {
	db := beginFunc(func(context.Context, *sql.TxOptions) (*sql.Tx, error) {
		return nil, errors.New("connection reset")
	})
	called := false
	err := Run(context.Background(), db, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "begin tx: connection reset")
	assert.False(t, called)
}
