package queue

import "testing"

func TestMapStatusToPushStage(t *testing.T) {
	cases := []struct {
		status string
		want   string
	}{
		{status: "accepted", want: "PREPARING"},
		{status: "preparing", want: "PREPARING"},
		{status: "ready", want: "READY"},
		{status: "out_for_delivery", want: "ON_THE_WAY"},
		{status: "delivered", want: "COMPLETED"},
		{status: "completed", want: "COMPLETED"},
		{status: "cancelled", want: "CANCELLED"},
		{status: "  READY  ", want: "READY"},
		{status: "pending", want: ""},
		{status: "", want: ""},
	}

	for _, tc := range cases {
		if got := mapStatusToPushStage(tc.status); got != tc.want {
			t.Fatalf("mapStatusToPushStage(%q): expected %q, got %q", tc.status, tc.want, got)
		}
	}
}
