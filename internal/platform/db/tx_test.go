package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

// fakeTx embeds pgx.Tx so only the methods WithTx uses need implementing.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool

	// Error injection
	commitErr error
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return f.commitErr
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeStarter struct {
	tx   *fakeTx
	opts pgx.TxOptions

	// Error injection
	beginErr error
}

func (f *fakeStarter) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	f.opts = opts
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func TestWithTxCommits(t *testing.T) {
	starter := &fakeStarter{tx: &fakeTx{}}
	err := WithTx(context.Background(), starter, func(pgx.Tx) error { return nil })
	assert.NoError(t, err)
	assert.True(t, starter.tx.committed)
	assert.Equal(t, pgx.RepeatableRead, starter.opts.IsoLevel)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	starter := &fakeStarter{tx: &fakeTx{}}
	boom := errors.New("boom")
	err := WithTx(context.Background(), starter, func(pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, starter.tx.committed)
	assert.True(t, starter.tx.rolledBack)
}

func TestWithTxWrapsBeginAndCommitErrors(t *testing.T) {
	boom := errors.New("conn refused")
	err := WithTx(context.Background(), &fakeStarter{beginErr: boom}, func(pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, boom)

	starter := &fakeStarter{tx: &fakeTx{commitErr: boom}}
	err = WithTxOptions(context.Background(), starter, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, pgx.Serializable, starter.opts.IsoLevel)
}
