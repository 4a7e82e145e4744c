package pulse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReason_RoundTripsThroughName(t *testing.T) {
	t.Parallel()
	for r := ReasonNone; r <= NoCandidates; r++ {
		got, err := ParseReason(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	_, err := ParseReason("bogus")
	assert.Error(t, err)
	assert.Equal(t, "reason(99)", Reason(99).String())
}

func TestReason_Rejects(t *testing.T) {
	t.Parallel()
	rejecting := map[Reason]bool{
		BeatTooLong:           true,
		BeatTooShort:          true,
		BadSystolicSequence:   true,
		BadTidalSequence:      true,
		BadDicroticSequence:   true,
		BadPeakSequence:       true,
		DicroticLikelySkipped: true,
	}
	for r := ReasonNone; r <= NoCandidates; r++ {
		assert.Equal(t, rejecting[r], r.Rejects(), r.String())
	}
}

func TestDiagnostic_String(t *testing.T) {
	t.Parallel()
	beat := Diagnostic{Reason: BeatTooLong, Time: 1.5, Start: 10, End: 900, Detail: "890 points"}
	assert.Equal(t, "beat_too_long at t=1.500s [10:900]: 890 points", beat.String())

	batch := Diagnostic{Reason: NoCandidates, Time: 0, Start: -1, End: -1, Detail: "1 candidate"}
	assert.Equal(t, "no_candidates at t=0.000s: 1 candidate", batch.String())
}
