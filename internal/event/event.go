// Package event defines the Provara event envelope and the operations
// that derive its identity, sign it, and verify a sequence of events
// forms a valid per-actor causal chain.
package event

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"

	"github.com/provara-protocol/provara-core/internal/canon"
	"github.com/provara-protocol/provara-core/internal/identity"
	"github.com/provara-protocol/provara-core/internal/provaraerr"
	"github.com/provara-protocol/provara-core/internal/signing"
)

// Event is one entry in an actor's append-only log. PrevEventHash is, in
// spite of its name, the event_id of the previous event by the same
// actor: nil on the actor's genesis event.
type Event struct {
	Type          string      `json:"type"`
	EventID       string      `json:"event_id"`
	Actor         string      `json:"actor"`
	PrevEventHash *string     `json:"prev_event_hash,omitempty"`
	TimestampUTC  *string     `json:"timestamp_utc,omitempty"`
	Payload       canon.Value `json:"-"`
	Signature     *string     `json:"signature,omitempty"`
}

// unsignedFields returns the canon.Value of the event's identity-bearing
// fields, excluding event_id and signature — the preimage for DeriveEventID.
func (e *Event) unsignedFields() canon.Value {
	members := []canon.Member{
		{Key: "type", Value: canon.String(e.Type)},
		{Key: "actor", Value: canon.String(e.Actor)},
	}
	if e.PrevEventHash != nil {
		members = append(members, canon.Member{Key: "prev_event_hash", Value: canon.String(*e.PrevEventHash)})
	}
	if e.TimestampUTC != nil {
		members = append(members, canon.Member{Key: "timestamp_utc", Value: canon.String(*e.TimestampUTC)})
	}
	members = append(members, canon.Member{Key: "payload", Value: e.Payload})
	return canon.Object(members...)
}

// signingPayload returns the canon.Value signed and verified for this
// event: every unsigned field plus the derived event_id, but never the
// signature itself.
func (e *Event) signingPayload() canon.Value {
	members := []canon.Member{
		{Key: "type", Value: canon.String(e.Type)},
		{Key: "event_id", Value: canon.String(e.EventID)},
		{Key: "actor", Value: canon.String(e.Actor)},
	}
	if e.PrevEventHash != nil {
		members = append(members, canon.Member{Key: "prev_event_hash", Value: canon.String(*e.PrevEventHash)})
	}
	if e.TimestampUTC != nil {
		members = append(members, canon.Member{Key: "timestamp_utc", Value: canon.String(*e.TimestampUTC)})
	}
	members = append(members, canon.Member{Key: "payload", Value: e.Payload})
	return canon.Object(members...)
}

// DeriveEventID computes and sets e.EventID from e's unsigned fields.
func (e *Event) DeriveEventID() error {
	id, err := identity.DeriveEventID(e.unsignedFields())
	if err != nil {
		return err
	}
	e.EventID = id
	return nil
}

// Sign derives e's event_id if unset, computes the SHA-256 digest of its
// canonical signing payload, signs that digest with signer, and sets
// e.Signature to the base64-encoded signature.
func (e *Event) Sign(signer *signing.Signer) error {
	if e.EventID == "" {
		if err := e.DeriveEventID(); err != nil {
			return err
		}
	}
	digest, err := identity.CanonicalHash(e.signingPayload())
	if err != nil {
		return err
	}
	sig := signer.SignDigest(digest)
	encoded := base64.StdEncoding.EncodeToString(sig)
	e.Signature = &encoded
	return nil
}

// VerifySignature reports whether e carries a valid signature from
// publicKey over its canonical signing payload.
func (e *Event) VerifySignature(publicKey ed25519.PublicKey) (bool, error) {
	if e.Signature == nil {
		return false, provaraerr.New(provaraerr.InvalidEvent, "event %s carries no signature", e.EventID)
	}
	sig, err := base64.StdEncoding.DecodeString(*e.Signature)
	if err != nil {
		return false, provaraerr.Wrap(provaraerr.Encoding, err, "decoding signature for event %s", e.EventID)
	}
	digest, err := identity.CanonicalHash(e.signingPayload())
	if err != nil {
		return false, err
	}
	return signing.VerifyDigest(publicKey, digest, sig), nil
}

// MarshalJSON renders the event as canonical-field JSON with payload
// folded in as an ordinary object member.
func (e *Event) MarshalJSON() ([]byte, error) {
	payloadBytes, err := canon.Canonicalize(e.Payload)
	if err != nil {
		return nil, err
	}
	type alias struct {
		Type          string          `json:"type"`
		EventID       string          `json:"event_id"`
		Actor         string          `json:"actor"`
		PrevEventHash *string         `json:"prev_event_hash,omitempty"`
		TimestampUTC  *string         `json:"timestamp_utc,omitempty"`
		Payload       json.RawMessage `json:"payload"`
		Signature     *string         `json:"signature,omitempty"`
	}
	return json.Marshal(alias{
		Type:          e.Type,
		EventID:       e.EventID,
		Actor:         e.Actor,
		PrevEventHash: e.PrevEventHash,
		TimestampUTC:  e.TimestampUTC,
		Payload:       json.RawMessage(payloadBytes),
		Signature:     e.Signature,
	})
}

// UnmarshalJSON parses an event from wire JSON, decoding payload through
// the canonical codec so its numeric categories are preserved.
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias struct {
		Type          string          `json:"type"`
		EventID       string          `json:"event_id"`
		Actor         string          `json:"actor"`
		PrevEventHash *string         `json:"prev_event_hash,omitempty"`
		TimestampUTC  *string         `json:"timestamp_utc,omitempty"`
		Payload       json.RawMessage `json:"payload"`
		Signature     *string         `json:"signature,omitempty"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return provaraerr.Wrap(provaraerr.InvalidJSON, err, "decoding event")
	}
	payload, err := canon.Parse(a.Payload)
	if err != nil {
		return err
	}
	e.Type = a.Type
	e.EventID = a.EventID
	e.Actor = a.Actor
	e.PrevEventHash = a.PrevEventHash
	e.TimestampUTC = a.TimestampUTC
	e.Payload = payload
	e.Signature = a.Signature
	return nil
}

// New builds an unsigned, unidentified event. Callers derive its ID (or
// call Sign, which derives it implicitly) before persisting it.
func New(eventType, actor string, prevEventHash, timestampUTC *string, payload canon.Value) *Event {
	return &Event{
		Type:          eventType,
		Actor:         actor,
		PrevEventHash: prevEventHash,
		TimestampUTC:  timestampUTC,
		Payload:       payload,
	}
}
