package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSha256RoundTrip(t *testing.T) {
	algo := Default()
	require.Equal(t, "E", algo.Code())
	require.Equal(t, 44, algo.Len())

	sum := algo.Sum([]byte("hello world"))
	require.Len(t, sum, 44)
	require.Equal(t, "E", sum[:1])

	// Deterministic
	require.Equal(t, sum, algo.Sum([]byte("hello world")))
	require.NotEqual(t, sum, algo.Sum([]byte("hello world!")))
}

func TestLookupUnknownCode(t *testing.T) {
	_, err := Lookup("Zsomething")
	require.ErrorIs(t, err, ErrUnknownCode)
	_, err = Lookup("")
	require.ErrorIs(t, err, ErrUnknownCode)
}
