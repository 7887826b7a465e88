package policy

import (
	"testing"
	"time"

	"reviewbot/types"
)

var testPolicy = Policy{
	WaitWindow:        5 * time.Minute,
	MinCompletionRate: 0.5,
}

func status(id string, transcript, summary bool) types.ArtifactStatus {
	return types.ArtifactStatus{VideoID: id, HasTranscript: transcript, HasSummary: summary}
}

func TestDecideNoItems(t *testing.T) {
	now := time.Now()
	res := testPolicy.Decide(nil, now.Add(-10*time.Minute), now)

	if res.State != types.StateNoItems {
		t.Fatalf("expected no_items, got %s", res.State)
	}
	if res.Ready() {
		t.Fatal("empty group must never be ready")
	}
}

func TestDecideCompleteRegardlessOfWindow(t *testing.T) {
	now := time.Now()
	statuses := []types.ArtifactStatus{
		status("a", true, true),
		status("b", true, true),
	}

	// Complete groups are ready immediately, window or not.
	res := testPolicy.Decide(statuses, now.Add(-time.Second), now)
	if res.State != types.StateComplete {
		t.Fatalf("expected complete, got %s", res.State)
	}
	if res.CompletedVideos != 2 || res.TotalVideos != 2 {
		t.Fatalf("unexpected counts: %d/%d", res.CompletedVideos, res.TotalVideos)
	}
}

func TestDecideMonotoneOverTime(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	statuses := []types.ArtifactStatus{
		status("a", true, true),
		status("b", true, true),
	}

	first := testPolicy.Decide(statuses, start, start.Add(time.Minute))
	if first.State != types.StateComplete {
		t.Fatalf("expected complete at T+1m, got %s", first.State)
	}

	// With the same artifact state, later evaluations must agree.
	for _, dt := range []time.Duration{10 * time.Minute, time.Hour, 24 * time.Hour} {
		later := testPolicy.Decide(statuses, start, start.Add(dt))
		if later.State != types.StateComplete {
			t.Fatalf("completion reverted at T+%s: %s", dt, later.State)
		}
	}
}

func TestDecidePartialFloorHolds(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// 1 of 4 complete: below the 0.5 floor, so even a long-expired
	// window leaves the group pending.
	statuses := []types.ArtifactStatus{
		status("a", true, true),
		status("b", true, false),
		status("c", false, false),
		status("d", false, true),
	}

	res := testPolicy.Decide(statuses, start, start.Add(time.Hour))
	if res.State != types.StatePending {
		t.Fatalf("expected pending below completion floor, got %s", res.State)
	}
	if res.CompletedVideos != 1 || res.PendingVideos != 3 {
		t.Fatalf("unexpected counts: complete=%d pending=%d", res.CompletedVideos, res.PendingVideos)
	}
}

func TestDecideTimedOutPartial(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// "nike air max review": 3 videos, 2 complete, 1 with neither
	// artifact.
	statuses := []types.ArtifactStatus{
		status("a", true, true),
		status("b", true, true),
		status("c", false, false),
	}

	// T+1 minute: window not elapsed, still pending.
	early := testPolicy.Decide(statuses, start, start.Add(time.Minute))
	if early.State != types.StatePending {
		t.Fatalf("expected pending at T+1m, got %s", early.State)
	}

	// T+6 minutes: window elapsed, 2/3 >= 0.5, partial fallback fires.
	late := testPolicy.Decide(statuses, start, start.Add(6*time.Minute))
	if late.State != types.StateTimedOutPartial {
		t.Fatalf("expected timed_out_partial at T+6m, got %s", late.State)
	}
	if late.CompletedVideos != 2 || late.TotalVideos != 3 {
		t.Fatalf("unexpected counts: %d/%d", late.CompletedVideos, late.TotalVideos)
	}
	if late.CompletionRate < 0.66 || late.CompletionRate > 0.67 {
		t.Fatalf("unexpected completion rate: %f", late.CompletionRate)
	}
}

func TestDecideUnknownStartNeverTimesOut(t *testing.T) {
	// Zero startedAt models a group discovered by the sweep fallback
	// after a restart: only full completion may fire.
	statuses := []types.ArtifactStatus{
		status("a", true, true),
		status("b", false, false),
	}

	res := testPolicy.Decide(statuses, time.Time{}, time.Now())
	if res.State != types.StatePending {
		t.Fatalf("expected pending without a wait start, got %s", res.State)
	}
}

func TestDecideHalfArtifactIsIncomplete(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	statuses := []types.ArtifactStatus{
		status("a", true, false),
	}

	res := testPolicy.Decide(statuses, start, start.Add(time.Minute))
	if res.State != types.StatePending {
		t.Fatalf("transcript alone must not complete a video: %s", res.State)
	}
	if res.CompletedVideos != 0 {
		t.Fatalf("expected 0 complete, got %d", res.CompletedVideos)
	}
}
