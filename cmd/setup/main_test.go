package main

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseFlags(nil)
	require.NoError(t, err)
	require.False(t, opts.changes())
	require.Equal(t, -1, opts.to)
	require.Equal(t, 50, opts.batchSize)
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{
		"--price", "2000000000000000",
		"--public-mint-start", "1700000000",
		"--owner-mint-csv", "mint.csv",
		"--from", "10",
		"--to", "19",
		"--batch-size", "5",
	})
	require.NoError(t, err)
	require.True(t, opts.changes())
	require.Equal(t, "2000000000000000", opts.price.String())
	require.Nil(t, opts.vault)
	require.Nil(t, opts.ringsAvailable)
	require.Equal(t, uint64(1_700_000_000), opts.publicMintStart)
	require.Equal(t, 10, opts.from)
	require.Equal(t, 19, opts.to)
	require.Equal(t, 5, opts.batchSize)

	_, err = parseFlags([]string{"--batch-size", "0"})
	require.Error(t, err)
	_, err = parseFlags([]string{"--unknown"})
	require.Error(t, err)
}

func TestParseFlagsValidatesSetterValues(t *testing.T) {
	opts, err := parseFlags([]string{
		"--vault", "0x00000000000000000000000000000000000000aa",
		"--rings-available", "500",
	})
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xaa"), *opts.vault)
	require.Equal(t, "500", opts.ringsAvailable.String())

	for _, args := range [][]string{
		{"--price", "1e18"},
		{"--price", "-1"},
		{"--vault", "0x1234"},
		{"--vault", "0x0000000000000000000000000000000000000000"},
		{"--vault", "0x00000000000000000000000000000000000000aa", "--price", "1", "--rings-available", "abc"},
	} {
		_, err := parseFlags(args)
		require.Error(t, err, "args=%v", args)
	}
}

func TestReadOwnerMintListMissingFile(t *testing.T) {
	_, err := readOwnerMintList(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}
