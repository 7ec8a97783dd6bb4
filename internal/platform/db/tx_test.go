package db

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestTxOptionsDefaultToRepeatableRead(t *testing.T) {
	require.Equal(t, pgx.RepeatableRead, txOptions().IsoLevel)
	require.Equal(t, pgx.RepeatableRead, txOptions(nil).IsoLevel)
}

func TestReadCommittedOption(t *testing.T) {
	opts := txOptions(ReadCommitted())
	require.Equal(t, pgx.ReadCommitted, opts.IsoLevel)
	require.Equal(t, pgx.TxAccessMode(""), opts.AccessMode)
}
