package auditlog

import (
	"strconv"
	"testing"
)

func TestRootEmptyLogReturnsNotOK(t *testing.T) {
	l := New()
	_, ok, err := l.Root()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for an empty log")
	}
}

func TestRootChangesWithNewOutcome(t *testing.T) {
	l := New()
	l.Record(Outcome{BatchID: "1", ClearingPrice: "50", MatchedVolume: "100", Status: "settled"})
	root1, ok, err := l.Root()
	if err != nil || !ok {
		t.Fatalf("unexpected result: root=%s ok=%v err=%v", root1, ok, err)
	}

	l.Record(Outcome{BatchID: "2", ClearingPrice: "60", MatchedVolume: "50", Status: "settled"})
	root2, ok, err := l.Root()
	if err != nil || !ok {
		t.Fatalf("unexpected result: root=%s ok=%v err=%v", root2, ok, err)
	}

	if root1 == root2 {
		t.Fatal("expected root to change after recording a new outcome")
	}
}

func TestRecordEvictsOldestBeyondMaxWindow(t *testing.T) {
	l := New()
	for i := 0; i < MaxWindow+10; i++ {
		l.Record(Outcome{BatchID: strconv.Itoa(i), Status: "settled"})
	}

	recent := l.Recent(MaxWindow + 10)
	if len(recent) != MaxWindow {
		t.Fatalf("expected window capped at %d, got %d", MaxWindow, len(recent))
	}
	if recent[0].BatchID != strconv.Itoa(10) {
		t.Fatalf("expected oldest surviving entry to be batch 10, got %s", recent[0].BatchID)
	}
	if recent[len(recent)-1].BatchID != strconv.Itoa(MaxWindow+9) {
		t.Fatalf("expected newest entry to be batch %d, got %s", MaxWindow+9, recent[len(recent)-1].BatchID)
	}
}

func TestRecentReturnsFewerThanRequestedWhenLogIsShort(t *testing.T) {
	l := New()
	l.Record(Outcome{BatchID: "1"})
	l.Record(Outcome{BatchID: "2"})

	recent := l.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
}
