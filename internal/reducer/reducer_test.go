package reducer

import (
	"testing"

	"github.com/provara-protocol/provara-core/internal/canon"
)

func observationEvent(eventID, actor, subject, predicate, value string, confidence float64) canon.Value {
	return canon.Object(
		canon.Member{Key: "type", Value: canon.String("OBSERVATION")},
		canon.Member{Key: "event_id", Value: canon.String(eventID)},
		canon.Member{Key: "actor", Value: canon.String(actor)},
		canon.Member{Key: "payload", Value: canon.Object(
			canon.Member{Key: "subject", Value: canon.String(subject)},
			canon.Member{Key: "predicate", Value: canon.String(predicate)},
			canon.Member{Key: "value", Value: canon.String(value)},
			canon.Member{Key: "confidence", Value: canon.Float(confidence)},
		)},
	)
}

func TestEmptyStateHashIsDeterministic(t *testing.T) {
	r1 := New(nil)
	r2 := New(nil)
	if r1.State.Metadata.StateHash == nil || r2.State.Metadata.StateHash == nil {
		t.Fatal("expected state hash to be set on construction")
	}
	if *r1.State.Metadata.StateHash != *r2.State.Metadata.StateHash {
		t.Errorf("two fresh reducers should share the same empty-state hash: %s != %s",
			*r1.State.Metadata.StateHash, *r2.State.Metadata.StateHash)
	}
}

func TestObservationMovesToLocal(t *testing.T) {
	r := New(nil)
	ev := observationEvent("evt_1", "alice", "door", "status", "open", 0.9)

	r.ApplyEvent(ev)

	rec, ok := r.State.Local["door:status"]
	if !ok {
		t.Fatal("expected door:status to land in local namespace")
	}
	v, _ := rec.Get("value")
	if s, _ := v.AsString(); s != "open" {
		t.Errorf("got value %v, want open", v)
	}
	if r.State.Metadata.EventCount != 1 {
		t.Errorf("expected event count 1, got %d", r.State.Metadata.EventCount)
	}
}

func TestConflictingObservationMarksContested(t *testing.T) {
	r := New(nil)
	r.ApplyEvent(observationEvent("evt_1", "alice", "door", "status", "open", 0.9))
	r.ApplyEvent(observationEvent("evt_2", "bob", "door", "status", "closed", 0.9))

	if _, stillLocal := r.State.Local["door:status"]; stillLocal {
		t.Error("expected door:status to leave local namespace once contested")
	}
	rec, ok := r.State.Contested["door:status"]
	if !ok {
		t.Fatal("expected door:status to be contested")
	}
	reason, _ := rec.Get("reason")
	if s, _ := reason.AsString(); s != "conflicts_with_local" {
		t.Errorf("got reason %v, want conflicts_with_local", reason)
	}
}

func TestLowConfidenceDoesNotContest(t *testing.T) {
	r := New(nil)
	r.ApplyEvent(observationEvent("evt_1", "alice", "door", "status", "open", 0.2))
	r.ApplyEvent(observationEvent("evt_2", "bob", "door", "status", "closed", 0.3))

	if _, ok := r.State.Contested["door:status"]; ok {
		t.Error("conflicting observations that never reach the threshold should not contest")
	}
	rec, ok := r.State.Local["door:status"]
	if !ok {
		t.Fatal("expected door:status to remain in local namespace")
	}
	v, _ := rec.Get("value")
	if s, _ := v.AsString(); s != "closed" {
		t.Errorf("expected the later sub-threshold observation to overwrite local, got %v", v)
	}
}

func TestAttestationClearsContestedAndLocal(t *testing.T) {
	r := New(nil)
	r.ApplyEvent(observationEvent("evt_1", "alice", "door", "status", "open", 0.9))
	r.ApplyEvent(observationEvent("evt_2", "bob", "door", "status", "closed", 0.9))

	attestation := canon.Object(
		canon.Member{Key: "type", Value: canon.String("ATTESTATION")},
		canon.Member{Key: "event_id", Value: canon.String("evt_3")},
		canon.Member{Key: "actor", Value: canon.String("root")},
		canon.Member{Key: "payload", Value: canon.Object(
			canon.Member{Key: "subject", Value: canon.String("door")},
			canon.Member{Key: "predicate", Value: canon.String("status")},
			canon.Member{Key: "value", Value: canon.String("closed")},
		)},
	)
	r.ApplyEvent(attestation)

	if _, ok := r.State.Contested["door:status"]; ok {
		t.Error("expected attestation to clear the contested record")
	}
	if _, ok := r.State.Local["door:status"]; ok {
		t.Error("expected attestation to clear the local record")
	}
	rec, ok := r.State.Canonical["door:status"]
	if !ok {
		t.Fatal("expected door:status to land in canonical namespace")
	}
	v, _ := rec.Get("value")
	if s, _ := v.AsString(); s != "closed" {
		t.Errorf("got canonical value %v, want closed", v)
	}
}

func TestConcurringObservationAgainstCanonicalIsNoop(t *testing.T) {
	r := New(nil)
	attestation := canon.Object(
		canon.Member{Key: "type", Value: canon.String("ATTESTATION")},
		canon.Member{Key: "event_id", Value: canon.String("evt_1")},
		canon.Member{Key: "actor", Value: canon.String("root")},
		canon.Member{Key: "payload", Value: canon.Object(
			canon.Member{Key: "subject", Value: canon.String("door")},
			canon.Member{Key: "predicate", Value: canon.String("status")},
			canon.Member{Key: "value", Value: canon.String("closed")},
		)},
	)
	r.ApplyEvent(attestation)

	r.ApplyEvent(observationEvent("evt_2", "alice", "door", "status", "closed", 0.9))

	if _, ok := r.State.Local["door:status"]; ok {
		t.Error("a concurring observation of an already-canonical fact must not recreate a local record")
	}
	rec, ok := r.State.Canonical["door:status"]
	if !ok {
		t.Fatal("expected door:status to remain canonical")
	}
	v, _ := rec.Get("value")
	if s, _ := v.AsString(); s != "closed" {
		t.Errorf("expected canonical value to remain closed, got %v", v)
	}
	if len(r.evidence["door:status"]) != 1 {
		t.Errorf("expected evidence to still be recorded for the concurring observation, got %d entries", len(r.evidence["door:status"]))
	}
}

func TestRetractionArchivesCanonical(t *testing.T) {
	r := New(nil)
	attestation := canon.Object(
		canon.Member{Key: "type", Value: canon.String("ATTESTATION")},
		canon.Member{Key: "event_id", Value: canon.String("evt_1")},
		canon.Member{Key: "actor", Value: canon.String("root")},
		canon.Member{Key: "payload", Value: canon.Object(
			canon.Member{Key: "subject", Value: canon.String("door")},
			canon.Member{Key: "predicate", Value: canon.String("status")},
			canon.Member{Key: "value", Value: canon.String("closed")},
		)},
	)
	r.ApplyEvent(attestation)

	retraction := canon.Object(
		canon.Member{Key: "type", Value: canon.String("RETRACTION")},
		canon.Member{Key: "event_id", Value: canon.String("evt_2")},
		canon.Member{Key: "actor", Value: canon.String("root")},
		canon.Member{Key: "payload", Value: canon.Object(
			canon.Member{Key: "subject", Value: canon.String("door")},
			canon.Member{Key: "predicate", Value: canon.String("status")},
		)},
	)
	r.ApplyEvent(retraction)

	if _, ok := r.State.Canonical["door:status"]; ok {
		t.Error("expected retraction to remove the canonical record")
	}
	archived, ok := r.State.Archived["door:status"]
	if !ok || len(archived) != 1 {
		t.Fatalf("expected one archived record, got %d", len(archived))
	}
	retracted, _ := archived[0].Get("retracted")
	if retracted.Kind != canon.KindBool || !retracted.Bool {
		t.Error("expected archived record to be marked retracted=true")
	}
}

func TestUnknownEventTypeIsIgnoredNotErrored(t *testing.T) {
	r := New(nil)
	weird := canon.Object(
		canon.Member{Key: "type", Value: canon.String("SOMETHING_NEW")},
		canon.Member{Key: "event_id", Value: canon.String("evt_1")},
		canon.Member{Key: "actor", Value: canon.String("alice")},
	)
	r.ApplyEvent(weird)

	ignored := r.IgnoredTypes()
	if len(ignored) != 1 || ignored[0] != "SOMETHING_NEW" {
		t.Errorf("expected ignored types [SOMETHING_NEW], got %v", ignored)
	}
	if r.State.Metadata.EventCount != 1 {
		t.Errorf("expected event count to still advance for ignored types, got %d", r.State.Metadata.EventCount)
	}
}

func TestApplyEventsRecomputesHashOnceAtEnd(t *testing.T) {
	r := New(nil)
	events := []canon.Value{
		observationEvent("evt_1", "alice", "door", "status", "open", 0.9),
		observationEvent("evt_2", "alice", "window", "status", "closed", 0.9),
	}
	r.ApplyEvents(events)

	if r.State.Metadata.EventCount != 2 {
		t.Errorf("expected event count 2, got %d", r.State.Metadata.EventCount)
	}
	if r.State.Metadata.StateHash == nil {
		t.Fatal("expected state hash to be set after batch apply")
	}
}
