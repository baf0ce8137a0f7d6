package speech

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeUnits(texts ...string) []ResponseUnit {
	units := make([]ResponseUnit, len(texts))
	for i, t := range texts {
		units[i] = ResponseUnit{Index: uint32(i), Text: t}
	}
	return units
}

func TestPacerFirstUnitImmediately(t *testing.T) {
	p := NewPacer(300, 5.0)
	units := makeUnits("First sentence of the reply.", "Second sentence.", "Third sentence.")

	// Plenty of buffered audio must not delay the first unit.
	submit, rest := p.Next(units, 100.0)
	require.Len(t, submit, 1)
	assert.Equal(t, uint32(0), submit[0].Index)
	assert.Len(t, rest, 2)
}

func TestPacerWaitsAboveLowWater(t *testing.T) {
	p := NewPacer(300, 5.0)
	units := makeUnits("One.", "Two.", "Three.")

	_, rest := p.Next(units, 10.0)
	submit, rest := p.Next(rest, 10.0)
	assert.Empty(t, submit, "small batch with audio buffered should wait")
	assert.Len(t, rest, 2)
}

func TestPacerLowWaterForcesSubmission(t *testing.T) {
	p := NewPacer(300, 5.0)
	units := makeUnits("One short sentence.", "Two short sentences.")

	_, rest := p.Next(units, 10.0)
	submit, rest := p.Next(rest, 4.9)
	require.Len(t, submit, 1)
	assert.Empty(t, rest)
}

func TestPacerBatchCharThresholdForcesSubmission(t *testing.T) {
	p := NewPacer(300, 5.0)
	long := strings.Repeat("word ", 70) // ~350 chars
	units := makeUnits("Opening line.", long)

	_, rest := p.Next(units, 100.0)
	submit, _ := p.Next(rest, 100.0)
	require.Len(t, submit, 1, "accumulated chars past the cap must submit despite buffered audio")
}

func TestPacerBatchCapsAtMaxChars(t *testing.T) {
	p := NewPacer(50, 5.0)
	units := makeUnits(
		"First unit here.",      // 16
		"Second unit here too.", // 21
		"Third unit is here.",   // 19
		"Fourth one.",           // 11
	)

	_, rest := p.Next(units, 10.0)
	submit, rest := p.Next(rest, 0.0)
	// 21+19 = 40 fits under 50; adding the fourth would exceed it.
	require.Len(t, submit, 2)
	assert.Equal(t, uint32(1), submit[0].Index)
	assert.Equal(t, uint32(2), submit[1].Index)
	require.Len(t, rest, 1)
	assert.Equal(t, uint32(3), rest[0].Index)
}

func TestPacerOversizedUnitStillSubmits(t *testing.T) {
	p := NewPacer(20, 5.0)
	units := makeUnits("short", strings.Repeat("x", 100))

	_, rest := p.Next(units, 10.0)
	submit, rest := p.Next(rest, 0.0)
	require.Len(t, submit, 1, "a unit larger than the cap goes out alone")
	assert.Empty(t, rest)
}

func TestPacerEmptyPending(t *testing.T) {
	p := NewPacer(300, 5.0)
	submit, rest := p.Next(nil, 0.0)
	assert.Empty(t, submit)
	assert.Empty(t, rest)
}

func TestPacerReset(t *testing.T) {
	p := NewPacer(300, 5.0)
	units := makeUnits("A reply.", "More of it.")

	submit, _ := p.Next(units, 100.0)
	require.Len(t, submit, 1)

	p.Reset()
	submit, _ = p.Next(units, 100.0)
	require.Len(t, submit, 1, "reset restores first-unit-immediate behavior")
}
