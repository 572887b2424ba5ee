package store

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{name: "pending to accepted", from: StatusPending, to: StatusAccepted, want: true},
		{name: "accepted to preparing", from: StatusAccepted, to: StatusPreparing, want: true},
		{name: "preparing to ready", from: StatusPreparing, to: StatusReady, want: true},
		{name: "ready to completed", from: StatusReady, to: StatusCompleted, want: true},
		{name: "ready to delivered", from: StatusReady, to: StatusDelivered, want: true},
		{name: "ready to out for delivery", from: StatusReady, to: StatusOutForDelivery, want: true},
		{name: "out for delivery to delivered", from: StatusOutForDelivery, to: StatusDelivered, want: true},
		{name: "cancel from pending", from: StatusPending, to: StatusCancelled, want: true},
		{name: "cancel from preparing", from: StatusPreparing, to: StatusCancelled, want: true},
		{name: "no skipping preparation", from: StatusPending, to: StatusReady, want: false},
		{name: "no going backwards", from: StatusReady, to: StatusPreparing, want: false},
		{name: "no leaving delivered", from: StatusDelivered, to: StatusCompleted, want: false},
		{name: "no cancelling completed", from: StatusCompleted, to: StatusCancelled, want: false},
		{name: "no reviving cancelled", from: StatusCancelled, to: StatusPending, want: false},
		{name: "unknown source", from: "draft", to: StatusPending, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Fatalf("CanTransition(%s, %s): expected %v, got %v", tc.from, tc.to, tc.want, got)
			}
		})
	}
}

func TestOccupiesTable(t *testing.T) {
	occupying := []string{StatusPending, StatusAccepted, StatusPreparing, StatusReady, StatusOutForDelivery}
	for _, status := range occupying {
		if !OccupiesTable(status) {
			t.Fatalf("expected %s to occupy the table", status)
		}
	}

	releasing := []string{StatusDelivered, StatusCompleted, StatusCancelled}
	for _, status := range releasing {
		if OccupiesTable(status) {
			t.Fatalf("expected %s to release the table", status)
		}
	}
}

func TestIsTerminalForEditing(t *testing.T) {
	if !IsTerminalForEditing(StatusDelivered) || !IsTerminalForEditing(StatusCompleted) {
		t.Fatal("delivered and completed must block edits")
	}
	for _, status := range []string{StatusPending, StatusAccepted, StatusPreparing, StatusReady, StatusOutForDelivery, StatusCancelled} {
		if IsTerminalForEditing(status) {
			t.Fatalf("expected %s to remain editable", status)
		}
	}
}

func TestIsKnownStatus(t *testing.T) {
	for status := range allowedTransitions {
		if !IsKnownStatus(status) {
			t.Fatalf("expected %s to be known", status)
		}
	}
	if IsKnownStatus("PENDING") {
		t.Fatal("statuses are lowercase")
	}
}
