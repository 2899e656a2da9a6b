package lightning_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liquidityos/lnescrow/lightning"
)

func TestParseMsatPlainAndSuffixed(t *testing.T) {
	v, err := lightning.ParseMsat("5000")
	require.NoError(t, err)
	require.Equal(t, uint64(5000), v)

	v, err = lightning.ParseMsat("5000msat")
	require.NoError(t, err)
	require.Equal(t, uint64(5000), v)

	v, err = lightning.ParseMsat("5000MSAT")
	require.NoError(t, err)
	require.Equal(t, uint64(5000), v)
}

func TestParseMsatDigitsOnlyFallback(t *testing.T) {
	v, err := lightning.ParseMsat("123abc")
	require.NoError(t, err)
	require.Equal(t, uint64(123), v)
}

func TestParseMsatRejectsNonNumeric(t *testing.T) {
	_, err := lightning.ParseMsat("abc")
	require.Error(t, err)
}

func TestMsatToSatsRequiresDivisibility(t *testing.T) {
	sats, ok := lightning.MsatToSats(5000)
	require.True(t, ok)
	require.Equal(t, uint64(5), sats)

	_, ok = lightning.MsatToSats(5001)
	require.False(t, ok)
}
