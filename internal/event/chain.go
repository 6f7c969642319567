package event

import (
	"crypto/ed25519"

	"github.com/provara-protocol/provara-core/internal/assert"
	"github.com/provara-protocol/provara-core/internal/provaraerr"
)

// ChainResult reports the outcome of verifying an event sequence.
type ChainResult struct {
	Valid        bool
	TotalEvents  int
	ErrorMessage string
	FailedAtID   string
}

// VerifyChain checks that events form a valid per-actor causal chain:
// each actor's first event in arrival order has a nil PrevEventHash, and
// every later event's PrevEventHash equals the event_id of that actor's
// immediately preceding event. Verification is decoupled from
// signatures — callers needing both should call VerifyChainAndSignatures.
func VerifyChain(events []*Event) *ChainResult {
	result := &ChainResult{Valid: true, TotalEvents: len(events)}
	lastByActor := make(map[string]string, len(events))

	for _, e := range events {
		last, seen := lastByActor[e.Actor]
		switch {
		case e.PrevEventHash == nil:
			if seen {
				result.Valid = false
				result.ErrorMessage = "actor " + e.Actor + " has multiple genesis events"
				result.FailedAtID = e.EventID
				return result
			}
		case !seen:
			result.Valid = false
			result.ErrorMessage = "actor " + e.Actor + " references a non-existent previous event"
			result.FailedAtID = e.EventID
			return result
		case *e.PrevEventHash != last:
			result.Valid = false
			result.ErrorMessage = "broken chain for actor " + e.Actor + ": expected " + last + ", got " + *e.PrevEventHash
			result.FailedAtID = e.EventID
			return result
		}
		lastByActor[e.Actor] = e.EventID
	}

	return result
}

// KeyResolver maps an actor's key-ID to the Ed25519 public key that
// signs on its behalf, as looked up in a vault's identity manifest.
type KeyResolver func(actor string) (ed25519.PublicKey, error)

// VerifyChainAndSignatures runs VerifyChain and, only if the chain is
// valid, verifies every event's signature against its actor's public
// key via resolve. It returns the chain result (now also reflecting any
// signature failure) and the first signature error encountered, if any.
func VerifyChainAndSignatures(events []*Event, resolve KeyResolver) (*ChainResult, error) {
	if err := assert.Check(resolve != nil, "key resolver must not be nil"); err != nil {
		return nil, err
	}

	result := VerifyChain(events)
	if !result.Valid {
		return result, nil
	}

	for _, e := range events {
		pub, err := resolve(e.Actor)
		if err != nil {
			return nil, provaraerr.Wrap(provaraerr.KeyDerivation, err, "resolving key for actor %s", e.Actor)
		}
		ok, err := e.VerifySignature(pub)
		if err != nil {
			return nil, err
		}
		if !ok {
			result.Valid = false
			result.ErrorMessage = "signature verification failed for event " + e.EventID
			result.FailedAtID = e.EventID
			return result, nil
		}
	}

	return result, nil
}
