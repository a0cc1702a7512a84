package renderx_test

import (
	"testing"

	"github.com/screencraft/api/pkg/renderx"
)

func TestValidateURLRejectsBlockedRanges(t *testing.T) {
	cases := []string{
		"http://127.0.0.1",
		"http://169.254.169.254/",
		"http://10.1.2.3",
		"http://192.168.1.1",
		"http://172.16.0.5",
		"http://localhost",
		"file:///etc/passwd",
		"ftp://example.com",
	}
	for _, raw := range cases {
		if err := renderx.ValidateURL(raw); err == nil {
			t.Errorf("expected %q to be rejected", raw)
		}
	}
}

func TestValidateURLAcceptsPublicHosts(t *testing.T) {
	cases := []string{
		"https://example.com",
		"http://example.com/path?q=1",
		"https://8.8.8.8",
	}
	for _, raw := range cases {
		if err := renderx.ValidateURL(raw); err != nil {
			t.Errorf("expected %q to be accepted, got %v", raw, err)
		}
	}
}

func TestValidateScreenshotRequestViewportBounds(t *testing.T) {
	base := func() *renderx.ScreenshotRequest {
		return &renderx.ScreenshotRequest{URL: "https://example.com"}
	}

	r := base()
	r.Viewport = &renderx.Viewport{Width: 319, Height: 600}
	if err := renderx.ValidateScreenshotRequest(r); err == nil {
		t.Fatal("expected width 319 to be rejected")
	}

	r = base()
	r.Viewport = &renderx.Viewport{Width: 320, Height: 600}
	if err := renderx.ValidateScreenshotRequest(r); err != nil {
		t.Fatalf("expected width 320 to be accepted, got %v", err)
	}

	r = base()
	r.Viewport = &renderx.Viewport{Width: 3841, Height: 600}
	if err := renderx.ValidateScreenshotRequest(r); err == nil {
		t.Fatal("expected width 3841 to be rejected")
	}
}

func TestValidateScreenshotRequestRejectsSSRFURL(t *testing.T) {
	r := &renderx.ScreenshotRequest{URL: "http://169.254.169.254/latest/meta-data"}
	if err := renderx.ValidateScreenshotRequest(r); err == nil {
		t.Fatal("expected metadata endpoint URL to be rejected")
	}
}

func TestValidateScreenshotRequestFullPageAndScrollMutuallyExclusive(t *testing.T) {
	r := &renderx.ScreenshotRequest{
		URL:            "https://example.com",
		FullPage:       true,
		ScrollPosition: &renderx.ScrollPosition{X: 0, Y: 100},
	}
	if err := renderx.ValidateScreenshotRequest(r); err == nil {
		t.Fatal("expected fullPage+scrollPosition to be rejected")
	}
}

func TestValidatePDFRequestTaggedUnion(t *testing.T) {
	url := &renderx.PDFRequest{SourceKind: "url", URL: "https://example.com"}
	if err := renderx.ValidatePDFRequest(url); err != nil {
		t.Fatalf("expected url-sourced PDF to validate, got %v", err)
	}

	missingURL := &renderx.PDFRequest{SourceKind: "url"}
	if err := renderx.ValidatePDFRequest(missingURL); err == nil {
		t.Fatal("expected url source without a URL to be rejected")
	}

	html := &renderx.PDFRequest{SourceKind: "html", HTML: "<p>hi</p>"}
	if err := renderx.ValidatePDFRequest(html); err != nil {
		t.Fatalf("expected html-sourced PDF to validate, got %v", err)
	}

	emptyHTML := &renderx.PDFRequest{SourceKind: "html", HTML: ""}
	if err := renderx.ValidatePDFRequest(emptyHTML); err == nil {
		t.Fatal("expected empty html to be rejected")
	}
}

func TestValidatePDFRequestDimensionStrings(t *testing.T) {
	r := &renderx.PDFRequest{SourceKind: "url", URL: "https://example.com", Margin: "1in"}
	if err := renderx.ValidatePDFRequest(r); err != nil {
		t.Fatalf("expected \"1in\" margin to validate, got %v", err)
	}

	r.Margin = "one inch"
	if err := renderx.ValidatePDFRequest(r); err == nil {
		t.Fatal("expected malformed margin to be rejected")
	}
}

func TestValidateRequestRejectsHeaderInjection(t *testing.T) {
	r := &renderx.ScreenshotRequest{
		URL:     "https://example.com",
		Headers: renderx.Headers{"X-Custom": "value\r\nX-Injected: evil"},
	}
	if err := renderx.ValidateScreenshotRequest(r); err == nil {
		t.Fatal("expected header injection attempt to be rejected")
	}
}

func TestValidateRequestRejectsCookieInjection(t *testing.T) {
	r := &renderx.ScreenshotRequest{
		URL:     "https://example.com",
		Cookies: []renderx.Cookie{{Name: "session", Value: "abc\ndef"}},
	}
	if err := renderx.ValidateScreenshotRequest(r); err == nil {
		t.Fatal("expected cookie value with embedded newline to be rejected")
	}
}
