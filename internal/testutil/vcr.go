// Package testutil holds shared helpers for tests that talk to external
// HTTP APIs. Recorded cassettes live under each package's
// testdata/fixtures directory.
package testutil

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// NewVCRRecorder opens the named cassette in replay mode, or record mode
// when VCR_MODE=record. The returned cleanup stops the recorder and
// flushes any recording.
func NewVCRRecorder(t *testing.T, cassetteName string) (*recorder.Recorder, func()) {
	t.Helper()

	mode := recorder.ModeReplaying
	if os.Getenv("VCR_MODE") == "record" {
		mode = recorder.ModeRecording
	}

	r, err := recorder.NewAsMode(filepath.Join("testdata", "fixtures", cassetteName), mode, nil)
	if err != nil {
		t.Fatalf("failed to create VCR recorder: %v", err)
	}

	// Streaming request bodies vary between runs, match on method and URL.
	r.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		return r.Method == i.Method && r.URL.String() == i.URL
	})

	cleanup := func() {
		if err := r.Stop(); err != nil {
			t.Errorf("failed to stop VCR recorder: %v", err)
		}
	}
	return r, cleanup
}

// VCRHTTPClient returns an HTTP client whose transport replays through r.
func VCRHTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{Transport: r}
}
