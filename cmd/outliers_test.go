package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMedianOddAndEven(t *testing.T) {
	require.Equal(t, 2.0, median([]float64{3, 1, 2}))
	require.Equal(t, 2.5, median([]float64{1, 2, 3, 4}))
}

func TestMedianAbsoluteDeviationCutoffFlagsLargeSpread(t *testing.T) {
	sizes := []float64{10, 11, 9, 10, 1000}
	cutoff := medianAbsoluteDeviationCutoff(sizes, 3)
	require.Less(t, cutoff, 1000.0, "cutoff should sit below the outlier value")
	require.Greater(t, cutoff, 11.0, "cutoff should sit above the tight cluster")
}
