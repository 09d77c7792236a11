package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/finextract/internal/render"
	"github.com/dgallion1/finextract/internal/vlm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	p := newTestProcessor(t, &render.PlaceholderRenderer{}, vlm.NewMockClient(), DefaultOptions())
	return NewService(p, time.Hour, testLogger())
}

func TestServiceProcessDocumentCreatesSession(t *testing.T) {
	svc := newTestService(t)

	sess, st, err := svc.ProcessDocument(context.Background(), "", Input{Filename: "r.pdf"})
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if sess.State() != st {
		t.Error("session should hold the latest state")
	}
	if svc.Sessions().Get(sess.ID) != sess {
		t.Error("session should be registered")
	}
	if snap := sess.Snapshot(); snap.Status != StatusReady || snap.Metrics != 3 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestServiceReusesSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, first, err := svc.ProcessDocument(ctx, "", Input{Filename: "r.pdf"})
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	again, _, err := svc.ProcessMarkup(ctx, sess.ID, "bad.xml", "<root>")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if again != sess {
		t.Fatal("expected the same session")
	}
	if sess.State() != first {
		t.Error("failed run must keep the previous result")
	}
	if snap := sess.Snapshot(); snap.Status != StatusFailed {
		t.Errorf("status = %q, want %q", snap.Status, StatusFailed)
	}

	_, second, err := svc.ProcessMarkup(ctx, sess.ID, "ok.xml", `<root><text bbox="0 0 1 1">hi</text></root>`)
	if err != nil {
		t.Fatalf("ProcessMarkup: %v", err)
	}
	if sess.State() != second {
		t.Error("session should hold the newest result")
	}
	if snap := sess.Snapshot(); snap.Status != StatusWarning {
		t.Errorf("status = %q, want %q", snap.Status, StatusWarning)
	}
}

func TestServiceUnknownSession(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.ProcessMarkup(context.Background(), "missing", "a.xml", "<root/>")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceCleanupLoop(t *testing.T) {
	p := newTestProcessor(t, nil, nil, DefaultOptions())
	svc := NewService(p, 20*time.Millisecond, testLogger())
	svc.Sessions().Create()

	svc.Start(context.Background())
	defer svc.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for svc.Sessions().Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected idle session to be evicted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServiceStopWithoutStart(t *testing.T) {
	newTestService(t).Stop()
}
