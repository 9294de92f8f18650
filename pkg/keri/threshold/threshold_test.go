package threshold

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimpleThreshold(t *testing.T) {
	th, err := Parse(json.RawMessage(`"2"`))
	require.NoError(t, err)
	require.Equal(t, Simple, th.Kind)
	require.False(t, th.IsSatisfiedBy([]int{0}))
	require.True(t, th.IsSatisfiedBy([]int{0, 1}))
	require.True(t, th.IsSatisfiedBy([]int{0, 0, 1})) // duplicate index counts once
	require.Equal(t, 2, th.MinSignatures())
}

func TestWeightedThreshold(t *testing.T) {
	th, err := Parse(json.RawMessage(`[["1/2","1/2","1/2"]]`))
	require.NoError(t, err)
	require.Equal(t, Weighted, th.Kind)
	require.NoError(t, th.CheckArity(3))
	require.Error(t, th.CheckArity(2))

	require.False(t, th.IsSatisfiedBy([]int{0}))
	require.True(t, th.IsSatisfiedBy([]int{0, 1}))
	// order-insensitive
	require.True(t, th.IsSatisfiedBy([]int{1, 0}))
}

func TestWeightedThresholdExactThirds(t *testing.T) {
	// 1/3 + 1/3 + 1/3 must equal exactly 1, not 0.999... under rational arithmetic.
	th, err := Parse(json.RawMessage(`[["1/3","1/3","1/3"]]`))
	require.NoError(t, err)
	require.True(t, th.IsSatisfiedBy([]int{0, 1, 2}))
	require.False(t, th.IsSatisfiedBy([]int{0, 1}))
}

func TestWeightedThresholdAnyClauseSatisfies(t *testing.T) {
	th, err := Parse(json.RawMessage(`[["1","0"],["0","1"]]`))
	require.NoError(t, err)
	require.True(t, th.IsSatisfiedBy([]int{0}))
	require.True(t, th.IsSatisfiedBy([]int{1}))
	require.False(t, th.IsSatisfiedBy([]int{}))
}

func TestWeightedThresholdExtraIndexIsNoOp(t *testing.T) {
	th, err := Parse(json.RawMessage(`[["1/2","1/2"]]`))
	require.NoError(t, err)
	base := th.IsSatisfiedBy([]int{0})
	withExtra := th.IsSatisfiedBy([]int{0, 5}) // index 5 is outside the clause
	require.Equal(t, base, withExtra)
}

func TestMinSignaturesWeightedGreedy(t *testing.T) {
	// One clause needs all three equal thirds (3 signers); a second
	// clause is satisfied by a single full-weight signer.
	th, err := Parse(json.RawMessage(`[["1/3","1/3","1/3"],["1","0","0"]]`))
	require.NoError(t, err)
	require.Equal(t, 1, th.MinSignatures())
}

func TestInvalidThreshold(t *testing.T) {
	_, err := Parse(json.RawMessage(`[["1/2","1/2"],["1/2"]]`))
	require.Error(t, err)

	_, err = Parse(json.RawMessage(`"-1"`))
	require.Error(t, err)

	_, err = Parse(json.RawMessage(`[[]]`))
	require.Error(t, err)
}
