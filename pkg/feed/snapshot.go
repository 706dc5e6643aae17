// Package feed parses raw VATSIM-style datafeed JSON and extracts the
// fields the reconciler needs: the snapshot's authoritative timestamp
// and the set of connected controller entries.
package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ControllerEntry is one controller's row in a feed snapshot. Only the
// fields the reconciler consumes are named; everything else in the raw
// payload is preserved in the archived bytes, not in this struct.
type ControllerEntry struct {
	CID                   int32     `json:"cid"`
	Name                  string    `json:"name"`
	ConnectedCallsignFull string    `json:"callsign"`
	UserRating            int16     `json:"rating"`
	RequestedRating       int16     `json:"facility"`
	PrimaryPositionID     string    `json:"primary_position_id"`
	LoginTime             time.Time `json:"logon_time"`
	IsObserver            bool      `json:"is_observer"`
}

// Snapshot is the parsed form of one feed poll.
type Snapshot struct {
	UpdatedAt   time.Time
	Controllers []ControllerEntry
}

// rawFeed mirrors the subset of the upstream document's shape that this
// package consumes.
type rawFeed struct {
	General struct {
		UpdateTimestamp time.Time `json:"update_timestamp"`
	} `json:"general"`
	Controllers []rawController `json:"controllers"`
}

type rawController struct {
	CID               int32  `json:"cid"`
	Name              string `json:"name"`
	Callsign          string `json:"callsign"`
	Rating            int16  `json:"rating"`
	Facility          int16  `json:"facility"`
	LogonTime         string `json:"logon_time"`
	PrimaryPositionID string `json:"primary_position_id"`
}

// ParseError wraps a feed parse failure with the operation that failed.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("feed: %s: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Fingerprint extracts a snapshot's canonical timestamp from raw feed
// bytes without fully parsing the controller array. Two documents with
// identical update_timestamp are considered the same snapshot regardless
// of byte identity.
func Fingerprint(raw []byte) (time.Time, error) {
	var header struct {
		General struct {
			UpdateTimestamp time.Time `json:"update_timestamp"`
		} `json:"general"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return time.Time{}, &ParseError{Op: "fingerprint", Err: err}
	}
	if header.General.UpdateTimestamp.IsZero() {
		return time.Time{}, &ParseError{Op: "fingerprint", Err: fmt.Errorf("missing general.update_timestamp")}
	}
	return header.General.UpdateTimestamp.UTC(), nil
}

// ParseSnapshot fully parses raw feed bytes into a Snapshot. Entries
// whose primary_position_id field is meant to resolve position but are
// otherwise malformed are still included; the reconciler, not this
// package, decides whether to discard them for session purposes (an
// unsplittable callsign is a reconciler-level concern, not a parse
// failure).
func ParseSnapshot(raw []byte) (Snapshot, error) {
	var rf rawFeed
	if err := json.Unmarshal(raw, &rf); err != nil {
		return Snapshot{}, &ParseError{Op: "parse", Err: err}
	}
	if rf.General.UpdateTimestamp.IsZero() {
		return Snapshot{}, &ParseError{Op: "parse", Err: fmt.Errorf("missing general.update_timestamp")}
	}

	entries := make([]ControllerEntry, 0, len(rf.Controllers))
	for _, rc := range rf.Controllers {
		logonTime, err := time.Parse(time.RFC3339, rc.LogonTime)
		if err != nil {
			logonTime = rf.General.UpdateTimestamp
		}
		entries = append(entries, ControllerEntry{
			CID:                   rc.CID,
			Name:                  rc.Name,
			ConnectedCallsignFull: rc.Callsign,
			UserRating:            rc.Rating,
			RequestedRating:       rc.Facility,
			PrimaryPositionID:     rc.PrimaryPositionID,
			LoginTime:             logonTime.UTC(),
			IsObserver:            rc.Rating == 0,
		})
	}

	return Snapshot{
		UpdatedAt:   rf.General.UpdateTimestamp.UTC(),
		Controllers: entries,
	}, nil
}

// SplitCallsign splits a connected callsign on its last underscore into
// (prefix, suffix), e.g. "SFO_TWR" -> ("SFO", "TWR"). Returns false if
// the callsign contains no underscore, per the rule that such entries
// are discarded for session purposes.
func SplitCallsign(callsign string) (prefix, suffix string, ok bool) {
	idx := strings.LastIndex(callsign, "_")
	if idx <= 0 || idx == len(callsign)-1 {
		return "", "", false
	}
	return callsign[:idx], callsign[idx+1:], true
}
