package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinearLifecycle(t *testing.T) {
	status := StatusPending
	var seen []Status
	for !status.Terminal() {
		tr, err := Next(status)
		require.NoError(t, err)
		status, err = tr.Apply(status)
		require.NoError(t, err)
		seen = append(seen, status)
	}
	require.Equal(t, []Status{StatusOngoing, StatusResolved, StatusDone}, seen)
	_, err := Next(StatusDone)
	require.ErrorIs(t, err, ErrTerminal)
}

func TestApplyRejectsMismatchedSource(t *testing.T) {
	cases := []struct {
		tr      Transition
		current Status
	}{
		{StartWork, StatusOngoing},
		{StartWork, StatusDone},
		{CloseWork, StatusPending},
		{CloseWork, StatusResolved},
		{MarkAsDone, StatusPending},
		{MarkAsDone, StatusDone},
	}
	for _, tc := range cases {
		got, err := tc.tr.Apply(tc.current)
		require.True(t, errors.Is(err, ErrInvalidTransition), "%s from %s", tc.tr, tc.current)
		require.Equal(t, tc.current, got)
	}
}

func TestParseTransition(t *testing.T) {
	tr, err := ParseTransition("close_work")
	require.NoError(t, err)
	require.Equal(t, StatusOngoing, tr.Source())
	require.Equal(t, StatusResolved, tr.Target())

	_, err = ParseTransition("reopen")
	require.ErrorIs(t, err, ErrUnknownTransition)
}

func TestStatusValid(t *testing.T) {
	for _, s := range Statuses() {
		require.True(t, s.Valid())
	}
	require.False(t, Status("closed").Valid())
}
