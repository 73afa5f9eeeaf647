package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"draft opens", StatusDraft, StatusOpen, true},
		{"draft closes", StatusDraft, StatusClosed, true},
		{"open confirms", StatusOpen, StatusConfirmed, true},
		{"confirmed performs", StatusConfirmed, StatusPerformed, true},
		{"confirmed refunds", StatusConfirmed, StatusRefunded, true},
		{"fee pending clears", StatusFeePending, StatusCleared, true},
		{"fee pending disputes", StatusFeePending, StatusInDispute, true},
		{"dispute clears", StatusInDispute, StatusCleared, true},
		{"dispute refunds", StatusInDispute, StatusRefunded, true},
		{"draft cannot confirm", StatusDraft, StatusConfirmed, false},
		{"open cannot perform", StatusOpen, StatusPerformed, false},
		{"cleared is final", StatusCleared, StatusRefunded, false},
		{"refunded is final", StatusRefunded, StatusOpen, false},
		{"closed is final", StatusClosed, StatusOpen, false},
		{"unknown source", Status("archived"), StatusOpen, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCleared.IsTerminal())
	assert.True(t, StatusRefunded.IsTerminal())
	assert.True(t, StatusClosed.IsTerminal())

	assert.False(t, StatusDraft.IsTerminal())
	assert.False(t, StatusOpen.IsTerminal())
	assert.False(t, StatusConfirmed.IsTerminal())
	assert.False(t, StatusFeePending.IsTerminal())
	assert.False(t, StatusInDispute.IsTerminal())
}

func TestIsValid(t *testing.T) {
	for _, s := range []Status{
		StatusDraft, StatusOpen, StatusConfirmed, StatusPerformed,
		StatusFeePending, StatusCleared, StatusInDispute, StatusRefunded, StatusClosed,
	} {
		assert.True(t, s.IsValid(), string(s))
	}
	assert.False(t, Status("archived").IsValid())
	assert.False(t, Status("").IsValid())
}
