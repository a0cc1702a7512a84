package renderqueue_test

import (
	"testing"

	"github.com/screencraft/api/pkg/renderqueue"
)

func TestClampPriorityDefaultsToFive(t *testing.T) {
	if got := renderqueue.ClampPriority(0); got != renderqueue.DefaultPriority {
		t.Fatalf("expected default priority 5, got %d", got)
	}
}

func TestClampPriorityBounds(t *testing.T) {
	cases := map[int]int{
		-5: 1,
		1:  1,
		5:  5,
		10: 10,
		20: 10,
	}
	for in, want := range cases {
		if got := renderqueue.ClampPriority(in); got != want {
			t.Errorf("ClampPriority(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestErrNotFoundIs404(t *testing.T) {
	err := renderqueue.ErrNotFound()
	if err.HTTPStatus != 404 {
		t.Fatalf("expected 404, got %d", err.HTTPStatus)
	}
}

func TestErrInvalidStateIncludesOperationAndState(t *testing.T) {
	err := renderqueue.ErrInvalidState("retry", renderqueue.StateWaiting)
	if err.Details["operation"] != "retry" || err.Details["state"] != "waiting" {
		t.Fatalf("expected operation/state details, got %+v", err.Details)
	}
}
