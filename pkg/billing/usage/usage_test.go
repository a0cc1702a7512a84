package usage_test

import (
	"testing"

	"github.com/screencraft/api/pkg/billing/usage"
)

func TestCostTableMatchesBillableEvents(t *testing.T) {
	cases := map[usage.EventType]int{
		usage.EventScreenshot:         1,
		usage.EventScreenshotFullPage: 2,
		usage.EventPDF:                2,
		usage.EventPDFWithTemplate:    3,
	}

	for eventType, want := range cases {
		got, ok := usage.Cost[eventType]
		if !ok {
			t.Fatalf("missing cost entry for %s", eventType)
		}
		if got != want {
			t.Fatalf("cost for %s: got %d, want %d", eventType, got, want)
		}
	}
}

func TestErrQuotaExceededIsTooManyRequests(t *testing.T) {
	err := usage.ErrQuotaExceeded()
	if err.HTTPStatus != 429 {
		t.Fatalf("expected 429 for quota exceeded, got %d", err.HTTPStatus)
	}
	if err.Code != "BILLING_QUOTA_EXCEEDED" {
		t.Fatalf("unexpected error code: %s", err.Code)
	}
}
