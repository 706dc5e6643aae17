package reconciler

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atcfeed/sessiond/internal/logger"
	"github.com/atcfeed/sessiond/pkg/codec"
	"github.com/atcfeed/sessiond/pkg/feed"
	storepg "github.com/atcfeed/sessiond/pkg/store/postgres"
)

// reconcile diffs one snapshot against the three session tables and
// applies opens, refreshes, and closes, then archives the snapshot and
// samples activity, all against tx.
func reconcile(ctx context.Context, tx pgx.Tx, snapshot feed.Snapshot, rawPayload []byte) (*Result, error) {
	result := &Result{SnapshotAt: snapshot.UpdatedAt}

	// Step 1: split callsigns. Entries that don't split are discarded
	// for session purposes but still counted toward the archive (they
	// are never omitted from rawPayload).
	type resolvedEntry struct {
		feed.ControllerEntry
		prefix, suffix string
	}
	resolved := make([]resolvedEntry, 0, len(snapshot.Controllers))
	for _, e := range snapshot.Controllers {
		prefix, suffix, ok := feed.SplitCallsign(e.ConnectedCallsignFull)
		if !ok {
			result.Skipped++
			continue
		}
		resolved = append(resolved, resolvedEntry{ControllerEntry: e, prefix: prefix, suffix: suffix})
	}

	// Step 2: load live state.
	liveCallsigns, err := storepg.LoadActiveCallsigns(ctx, tx)
	if err != nil {
		return nil, err
	}
	livePositions, err := storepg.LoadActivePositions(ctx, tx)
	if err != nil {
		return nil, err
	}
	liveControllers, err := storepg.LoadActiveControllers(ctx, tx)
	if err != nil {
		return nil, err
	}

	// Step 3: compute present-sets, resolving same-key duplicates
	// within this snapshot (first wins; later duplicates are skipped).
	presentCallsigns := make(map[storepg.CallsignKey]resolvedEntry)
	presentPositions := make(map[string]resolvedEntry)
	presentControllers := make(map[int32]resolvedEntry)

	var deduped []resolvedEntry
	for _, e := range resolved {
		key := storepg.CallsignKey{Prefix: e.prefix, Suffix: e.suffix}
		if _, dup := presentCallsigns[key]; dup {
			result.Skipped++
			logger.WarnCtx(ctx, "duplicate callsign in snapshot, skipping", logger.CallsignPair(e.prefix, e.suffix))
			continue
		}
		if _, dup := presentPositions[e.PrimaryPositionID]; dup {
			result.Skipped++
			logger.WarnCtx(ctx, "duplicate position in snapshot, skipping", logger.PositionID(e.PrimaryPositionID))
			continue
		}
		if _, dup := presentControllers[e.CID]; dup {
			result.Skipped++
			logger.WarnCtx(ctx, "duplicate cid in snapshot, skipping", logger.ControllerCID(e.CID))
			continue
		}
		presentCallsigns[key] = e
		presentPositions[e.PrimaryPositionID] = e
		presentControllers[e.CID] = e
		deduped = append(deduped, e)
	}

	// Step 4: close disappearances. Callsigns and positions close
	// first so a re-pointed ControllerSession in step 5 always
	// references the session just opened this snapshot, never one
	// about to be closed.
	for key, cs := range liveCallsigns {
		if _, present := presentCallsigns[key]; !present {
			if err := storepg.CloseCallsignSession(ctx, tx, cs.ID, snapshot.UpdatedAt); err != nil {
				return nil, err
			}
			result.Closed++
		}
	}
	for posID, ps := range livePositions {
		if _, present := presentPositions[posID]; !present {
			if err := storepg.ClosePositionSession(ctx, tx, ps.ID, snapshot.UpdatedAt); err != nil {
				return nil, err
			}
			result.Closed++
		}
	}
	for cid, ctrl := range liveControllers {
		if _, present := presentControllers[cid]; !present {
			if err := storepg.CloseControllerSession(ctx, tx, ctrl.ID, snapshot.UpdatedAt); err != nil {
				return nil, err
			}
			result.Closed++
		}
	}

	// Step 5: upsert sessions, callsign and position first so the
	// controller row can reference the IDs determined here.
	callsignIDs := make(map[storepg.CallsignKey]uuid.UUID, len(deduped))
	for key := range presentCallsigns {
		if live, ok := liveCallsigns[key]; ok {
			if err := storepg.RefreshCallsignSession(ctx, tx, live.ID, snapshot.UpdatedAt); err != nil {
				return nil, err
			}
			callsignIDs[key] = live.ID
			result.Refreshed++
			continue
		}
		id, err := storepg.OpenCallsignSession(ctx, tx, key.Prefix, key.Suffix, snapshot.UpdatedAt)
		if err != nil {
			return nil, err
		}
		callsignIDs[key] = id
		result.Opened++
	}

	positionIDs := make(map[string]uuid.UUID, len(deduped))
	for posID := range presentPositions {
		if live, ok := livePositions[posID]; ok {
			if err := storepg.RefreshPositionSession(ctx, tx, live.ID, snapshot.UpdatedAt); err != nil {
				return nil, err
			}
			positionIDs[posID] = live.ID
			result.Refreshed++
			continue
		}
		id, err := storepg.OpenPositionSession(ctx, tx, posID, snapshot.UpdatedAt)
		if err != nil {
			return nil, err
		}
		positionIDs[posID] = id
		result.Opened++
	}

	for _, e := range deduped {
		key := storepg.CallsignKey{Prefix: e.prefix, Suffix: e.suffix}
		fields := storepg.ControllerFields{
			CID:               e.CID,
			Name:              e.Name,
			UserRating:        e.UserRating,
			RequestedRating:   e.RequestedRating,
			ConnectedCallsign: e.ConnectedCallsignFull,
			PrimaryPositionID: e.PrimaryPositionID,
			LoginTime:         e.LoginTime,
			IsObserver:        e.IsObserver,
			CallsignSessionID: callsignIDs[key],
			PositionSessionID: positionIDs[e.PrimaryPositionID],
		}

		if live, ok := liveControllers[e.CID]; ok {
			if err := storepg.RefreshControllerSession(ctx, tx, live.ID, fields, snapshot.UpdatedAt); err != nil {
				return nil, err
			}
			result.Refreshed++
			continue
		}
		if _, err := storepg.OpenControllerSession(ctx, tx, fields, snapshot.UpdatedAt); err != nil {
			return nil, err
		}
		result.Opened++
	}

	// Step 6: archive. ProcessOne deletes the queue row in the same
	// transaction.
	enc, err := codec.Encode(rawPayload)
	if err != nil {
		return nil, err
	}
	if err := storepg.InsertArchive(ctx, tx, snapshot.UpdatedAt, enc); err != nil {
		return nil, err
	}

	// Step 7: sample activity, derived from the present-sets computed
	// above rather than re-querying the database, so the sample
	// reflects exactly the state just written.
	result.ActiveControllers = len(presentControllers)
	result.ActiveCallsigns = len(presentCallsigns)
	result.ActivePositions = len(presentPositions)
	if err := storepg.InsertActivityStats(ctx, tx, storepg.ActivityCounts{
		ObservedAt:        snapshot.UpdatedAt,
		ActiveControllers: result.ActiveControllers,
		ActiveCallsigns:   result.ActiveCallsigns,
		ActivePositions:   result.ActivePositions,
	}); err != nil {
		return nil, err
	}

	return result, nil
}
