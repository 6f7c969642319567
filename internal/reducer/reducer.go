// Package reducer implements SovereignReducerV0, the deterministic
// state projection that folds a stream of events into three competing
// namespaces (canonical, local, contested) plus an archive of
// superseded claims, backed by an evidence ledger used to explain every
// contested decision.
package reducer

import (
	"encoding/hex"
	"sort"

	"github.com/provara-protocol/provara-core/internal/canon"
	"github.com/provara-protocol/provara-core/internal/identity"
)

const (
	Name    = "SovereignReducerV0"
	Version = "0.2.0"

	DefaultConflictConfidenceThreshold = 0.50
	defaultObservationConfidence       = 0.50
	defaultAssertionConfidence         = 0.35
)

// Evidence is one observation or assertion recorded against a
// subject:predicate key, kept even after the key's current record is
// superseded so mark_contested can explain itself from full history.
type Evidence struct {
	EventID      string
	Actor        string
	Namespace    string
	TimestampUTC *string
	Value        canon.Value
	Confidence   float64
}

// Metadata describes the reducer instance itself, embedded in every
// state hash so two reducers run with different thresholds never
// collide on the same hash.
type Metadata struct {
	Name                        string
	Version                     string
	ConflictConfidenceThreshold float64
}

// StateMetadata carries the reducer's run-level bookkeeping alongside
// the three namespaces.
type StateMetadata struct {
	LastEventID  *string
	EventCount   uint64
	StateHash    *string
	CurrentEpoch *canon.Value
	Reducer      Metadata
}

// State is the externally visible projection: three namespaces of
// subject:predicate records plus an archive of ones they superseded.
type State struct {
	Canonical map[string]canon.Value
	Local     map[string]canon.Value
	Contested map[string]canon.Value
	Archived  map[string][]canon.Value
	Metadata  StateMetadata
}

// Reducer is SovereignReducerV0: apply_event(s) is its only mutator, and
// every call recomputes State.Metadata.StateHash before returning.
type Reducer struct {
	State        State
	evidence     map[string][]Evidence
	ignoredTypes map[string]struct{}
}

// New constructs a Reducer with an empty state. threshold is the
// confidence an incoming observation must reach to contest an existing
// canonical claim, and that the higher of the existing and incoming
// confidences must reach to contest a local claim; nil selects the
// protocol default.
func New(threshold *float64) *Reducer {
	t := DefaultConflictConfidenceThreshold
	if threshold != nil {
		t = *threshold
	}
	r := &Reducer{
		State: State{
			Canonical: map[string]canon.Value{},
			Local:     map[string]canon.Value{},
			Contested: map[string]canon.Value{},
			Archived:  map[string][]canon.Value{},
			Metadata: StateMetadata{
				Reducer: Metadata{Name: Name, Version: Version, ConflictConfidenceThreshold: t},
			},
		},
		evidence:     map[string][]Evidence{},
		ignoredTypes: map[string]struct{}{},
	}
	r.updateStateHash()
	return r
}

// IgnoredTypes returns the sorted set of event types this reducer has
// seen but does not know how to fold, so callers can surface them
// without the reducer itself logging or erroring on unknown types.
func (r *Reducer) IgnoredTypes() []string {
	out := make([]string, 0, len(r.ignoredTypes))
	for t := range r.ignoredTypes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ApplyEvents folds each event in order and recomputes the state hash
// once at the end, matching the batch semantics of a vault replay.
func (r *Reducer) ApplyEvents(events []canon.Value) {
	for _, e := range events {
		r.applyEventInternal(e)
	}
	r.updateStateHash()
}

// ApplyEvent folds a single event and recomputes the state hash.
func (r *Reducer) ApplyEvent(e canon.Value) {
	r.applyEventInternal(e)
	r.updateStateHash()
}

func (r *Reducer) applyEventInternal(e canon.Value) {
	if e.Kind != canon.KindObject {
		return
	}

	eType, _ := e.Get("type")
	typeStr := eType.StringOr("")

	eventID := "unknown_event"
	if v, ok := e.Get("event_id"); ok {
		eventID = v.StringOr(eventID)
	} else if v, ok := e.Get("id"); ok {
		eventID = v.StringOr(eventID)
	}

	actor := "unknown"
	if v, ok := e.Get("actor"); ok {
		actor = v.StringOr(actor)
	}

	namespaceRaw, _ := e.Get("namespace")
	namespace := normalizeNamespace(namespaceRaw)

	payload, hasPayload := e.Get("payload")

	switch typeStr {
	case "OBSERVATION":
		if hasPayload {
			r.handleObservation(eventID, actor, namespace, payload, false)
		}
	case "ASSERTION":
		if hasPayload {
			r.handleObservation(eventID, actor, namespace, payload, true)
		}
	case "ATTESTATION":
		if hasPayload {
			r.handleAttestation(eventID, actor, payload)
		}
	case "RETRACTION":
		if hasPayload {
			r.handleRetraction(eventID, payload)
		}
	case "REDUCER_EPOCH":
		if hasPayload {
			r.handleReducerEpoch(eventID, payload)
		}
	default:
		if typeStr != "" {
			r.ignoredTypes[typeStr] = struct{}{}
		}
	}

	r.State.Metadata.LastEventID = &eventID
	r.State.Metadata.EventCount++
}

func normalizeNamespace(raw canon.Value) string {
	ns := raw.StringOr("local")
	switch ns {
	case "canonical", "local", "contested", "archived":
		return ns
	default:
		return "local"
	}
}

func subjectPredicateKey(subject, predicate string) string {
	return subject + ":" + predicate
}

func (r *Reducer) handleObservation(eventID, actor, namespace string, payload canon.Value, isAssertion bool) {
	subjectVal, ok := payload.Get("subject")
	if !ok {
		return
	}
	subject, ok := subjectVal.AsString()
	if !ok {
		return
	}
	predicateVal, ok := payload.Get("predicate")
	if !ok {
		return
	}
	predicate, ok := predicateVal.AsString()
	if !ok {
		return
	}

	key := subjectPredicateKey(subject, predicate)
	value, _ := payload.Get("value")
	if !valuePresent(payload, "value") {
		value = canon.Null
	}

	defaultConf := defaultObservationConfidence
	if isAssertion {
		defaultConf = defaultAssertionConfidence
	}
	confidence := defaultConf
	if c, ok := payload.Get("confidence"); ok {
		confidence = c.Float64Or(defaultConf)
	}

	var ts *string
	if t, ok := payload.Get("timestamp"); ok {
		if s, ok := t.AsString(); ok {
			ts = &s
		}
	} else if t, ok := payload.Get("timestamp_utc"); ok {
		if s, ok := t.AsString(); ok {
			ts = &s
		}
	}

	r.evidence[key] = append(r.evidence[key], Evidence{
		EventID:      eventID,
		Actor:        actor,
		Namespace:    namespace,
		TimestampUTC: ts,
		Value:        value,
		Confidence:   confidence,
	})

	threshold := r.State.Metadata.Reducer.ConflictConfidenceThreshold

	if ce, ok := r.State.Canonical[key]; ok {
		ceValue, _ := ce.Get("value")
		if canon.Equal(ceValue, value) {
			// A concurring observation of an already-canonical fact updates
			// neither canonical nor local; evidence was already recorded above.
			return
		}
		if confidence >= threshold {
			r.markContested(key, "conflicts_with_canonical")
			return
		}
	}

	if le, ok := r.State.Local[key]; ok {
		leValue, _ := le.Get("value")
		if !canon.Equal(leValue, value) {
			prevConf := 0.0
			if c, ok := le.Get("confidence"); ok {
				prevConf = c.Float64Or(0.0)
			}
			if max(prevConf, confidence) >= threshold {
				r.markContested(key, "conflicts_with_local")
				return
			}
		} else {
			existingConf := 0.0
			if c, ok := le.Get("confidence"); ok {
				existingConf = c.Float64Or(0.0)
			}
			if confidence <= existingConf {
				return
			}
		}
	}

	var tsValue canon.Value
	if ts != nil {
		tsValue = canon.String(*ts)
	} else {
		tsValue = canon.Null
	}

	r.State.Local[key] = canon.Object(
		canon.Member{Key: "value", Value: value},
		canon.Member{Key: "confidence", Value: canon.Float(confidence)},
		canon.Member{Key: "provenance", Value: canon.String(eventID)},
		canon.Member{Key: "actor", Value: canon.String(actor)},
		canon.Member{Key: "timestamp", Value: tsValue},
		canon.Member{Key: "evidence_count", Value: canon.Int(int64(len(r.evidence[key])))},
	)
}

func valuePresent(payload canon.Value, key string) bool {
	_, ok := payload.Get(key)
	return ok
}

func (r *Reducer) handleAttestation(eventID, actor string, payload canon.Value) {
	subjectVal, ok := payload.Get("subject")
	if !ok {
		return
	}
	subject, ok := subjectVal.AsString()
	if !ok {
		return
	}
	predicateVal, ok := payload.Get("predicate")
	if !ok {
		return
	}
	predicate, ok := predicateVal.AsString()
	if !ok {
		return
	}
	key := subjectPredicateKey(subject, predicate)

	value, hasValue := payload.Get("value")
	if !hasValue {
		value = canon.Null
	}

	targetEventID := eventID
	if t, ok := payload.Get("target_event_id"); ok {
		if s, ok := t.AsString(); ok {
			targetEventID = s
		}
	}

	attestedBy := actor
	if k, ok := payload.Get("actor_key_id"); ok {
		if s, ok := k.AsString(); ok {
			attestedBy = s
		}
	}

	if existing, ok := r.State.Canonical[key]; ok {
		archived := existing.With("superseded_by", canon.String(eventID))
		r.State.Archived[key] = append(r.State.Archived[key], archived)
	}

	r.State.Canonical[key] = canon.Object(
		canon.Member{Key: "value", Value: value},
		canon.Member{Key: "attested_by", Value: canon.String(attestedBy)},
		canon.Member{Key: "provenance", Value: canon.String(targetEventID)},
		canon.Member{Key: "attestation_event_id", Value: canon.String(eventID)},
	)

	delete(r.State.Local, key)
	delete(r.State.Contested, key)
}

func (r *Reducer) handleRetraction(eventID string, payload canon.Value) {
	subjectVal, ok := payload.Get("subject")
	if !ok {
		return
	}
	subject, ok := subjectVal.AsString()
	if !ok {
		return
	}
	predicateVal, ok := payload.Get("predicate")
	if !ok {
		return
	}
	predicate, ok := predicateVal.AsString()
	if !ok {
		return
	}
	key := subjectPredicateKey(subject, predicate)

	if existing, ok := r.State.Canonical[key]; ok {
		archived := existing.With("superseded_by", canon.String(eventID)).With("retracted", canon.Bool(true))
		r.State.Archived[key] = append(r.State.Archived[key], archived)
		delete(r.State.Canonical, key)
	}

	delete(r.State.Local, key)
	delete(r.State.Contested, key)
}

func (r *Reducer) handleReducerEpoch(eventID string, payload canon.Value) {
	epochID, _ := payload.Get("epoch_id")
	reducerHash, _ := payload.Get("reducer_hash")
	ontologyVersions, _ := payload.Get("ontology_versions")

	effectiveFrom := eventID
	if v, ok := payload.Get("effective_from_event_id"); ok {
		if s, ok := v.AsString(); ok {
			effectiveFrom = s
		}
	}

	epoch := canon.Object(
		canon.Member{Key: "epoch_id", Value: epochID},
		canon.Member{Key: "reducer_hash", Value: reducerHash},
		canon.Member{Key: "effective_from_event_id", Value: canon.String(effectiveFrom)},
		canon.Member{Key: "ontology_versions", Value: ontologyVersions},
	)
	r.State.Metadata.CurrentEpoch = &epoch
}

// markContested moves key into the contested namespace, removing it
// from local, and records every value a conflicting piece of evidence
// ever carried so a resolver can see the full disagreement, not just
// the two values that happened to collide.
func (r *Reducer) markContested(key, reason string) {
	allEvidence := r.evidence[key]

	byValue := map[string][]canon.Value{}
	order := make([]string, 0)
	for _, ev := range allEvidence {
		valKey, err := canon.CanonicalToString(ev.Value)
		if err != nil {
			valKey = ""
		}
		if _, seen := byValue[valKey]; !seen {
			order = append(order, valKey)
		}
		var tsValue canon.Value
		if ev.TimestampUTC != nil {
			tsValue = canon.String(*ev.TimestampUTC)
		} else {
			tsValue = canon.Null
		}
		byValue[valKey] = append(byValue[valKey], canon.Object(
			canon.Member{Key: "event_id", Value: canon.String(ev.EventID)},
			canon.Member{Key: "actor", Value: canon.String(ev.Actor)},
			canon.Member{Key: "namespace", Value: canon.String(ev.Namespace)},
			canon.Member{Key: "timestamp_utc", Value: tsValue},
			canon.Member{Key: "value", Value: ev.Value},
			canon.Member{Key: "confidence", Value: canon.Float(ev.Confidence)},
		))
	}

	evidenceByValueMembers := make([]canon.Member, 0, len(byValue))
	for _, k := range order {
		evidenceByValueMembers = append(evidenceByValueMembers, canon.Member{
			Key:   k,
			Value: canon.Array(byValue[k]...),
		})
	}

	var canonicalValue canon.Value = canon.Null
	if ce, ok := r.State.Canonical[key]; ok {
		if v, ok := ce.Get("value"); ok {
			canonicalValue = v
		}
	}

	r.State.Contested[key] = canon.Object(
		canon.Member{Key: "status", Value: canon.String("AWAITING_RESOLUTION")},
		canon.Member{Key: "reason", Value: canon.String(reason)},
		canon.Member{Key: "canonical_value", Value: canonicalValue},
		canon.Member{Key: "evidence_by_value", Value: canon.Object(evidenceByValueMembers...)},
		canon.Member{Key: "total_evidence_count", Value: canon.Int(int64(len(allEvidence)))},
	)

	delete(r.State.Local, key)
}

func (r *Reducer) updateStateHash() {
	hashable := canon.Object(
		canon.Member{Key: "canonical", Value: mapToObject(r.State.Canonical)},
		canon.Member{Key: "local", Value: mapToObject(r.State.Local)},
		canon.Member{Key: "contested", Value: mapToObject(r.State.Contested)},
		canon.Member{Key: "archived", Value: archiveToObject(r.State.Archived)},
		canon.Member{Key: "metadata_partial", Value: r.metadataPartial()},
	)

	digest, err := identity.CanonicalHash(hashable)
	if err != nil {
		r.State.Metadata.StateHash = nil
		return
	}
	h := hex.EncodeToString(digest[:])
	r.State.Metadata.StateHash = &h
}

func (r *Reducer) metadataPartial() canon.Value {
	var lastEventID canon.Value = canon.Null
	if r.State.Metadata.LastEventID != nil {
		lastEventID = canon.String(*r.State.Metadata.LastEventID)
	}
	var epoch canon.Value = canon.Null
	if r.State.Metadata.CurrentEpoch != nil {
		epoch = *r.State.Metadata.CurrentEpoch
	}
	return canon.Object(
		canon.Member{Key: "last_event_id", Value: lastEventID},
		canon.Member{Key: "event_count", Value: canon.Uint(r.State.Metadata.EventCount)},
		canon.Member{Key: "current_epoch", Value: epoch},
		canon.Member{Key: "reducer", Value: canon.Object(
			canon.Member{Key: "name", Value: canon.String(r.State.Metadata.Reducer.Name)},
			canon.Member{Key: "version", Value: canon.String(r.State.Metadata.Reducer.Version)},
			canon.Member{Key: "conflict_confidence_threshold", Value: canon.Float(r.State.Metadata.Reducer.ConflictConfidenceThreshold)},
		)},
	)
}

func mapToObject(m map[string]canon.Value) canon.Value {
	members := make([]canon.Member, 0, len(m))
	for k, v := range m {
		members = append(members, canon.Member{Key: k, Value: v})
	}
	return canon.Object(members...)
}

func archiveToObject(m map[string][]canon.Value) canon.Value {
	members := make([]canon.Member, 0, len(m))
	for k, v := range m {
		members = append(members, canon.Member{Key: k, Value: canon.Array(v...)})
	}
	return canon.Object(members...)
}

