package session

import (
	"time"

	"turag/internal/ragmodel"
)

// MergeObservations folds one utterance's EntityObservations into the
// session's long-term EntityMap and updates its ActiveEntityView:
//
//   - Same kind + same value: increments mention_count, raises confidence
//     to the max of the two observations, and bumps last_seen.
//   - Same kind + different value: a context switch. Sticky kinds
//     (budget, group_composition, travel_dates) keep the old active value
//     and add the new one as a secondary entry, never evicting either from
//     EntityMap. Singleton kinds (destination and everything else) replace
//     the ActiveEntityView entry outright; the superseded value is kept in
//     EntityMap for history but dropped from the active view.
func MergeObservations(s *ragmodel.Session, turnID string, obs []ragmodel.EntityObservation, now time.Time) {
	if s.EntityMap == nil {
		s.EntityMap = make(ragmodel.EntityMap)
	}
	if s.ActiveEntities == nil {
		s.ActiveEntities = make(ragmodel.ActiveEntityView)
	}

	for _, o := range obs {
		byValue, ok := s.EntityMap[o.Kind]
		if !ok {
			byValue = make(map[string]*ragmodel.EntityMention)
			s.EntityMap[o.Kind] = byValue
		}

		if existing, ok := byValue[o.Value]; ok {
			existing.MentionCount++
			if o.Confidence > existing.Confidence {
				existing.Confidence = o.Confidence
			}
			existing.LastSeen = now
			existing.ContributingTurnIDs = append(existing.ContributingTurnIDs, turnID)
		} else {
			byValue[o.Value] = &ragmodel.EntityMention{
				Value:               o.Value,
				MentionCount:        1,
				Confidence:          o.Confidence,
				FirstSeen:           now,
				LastSeen:            now,
				ContributingTurnIDs: []string{turnID},
			}
		}

		active, wasActive := s.ActiveEntities[o.Kind]
		switch {
		case !wasActive:
			s.ActiveEntities[o.Kind] = o.Value
		case active == o.Value:
			// already active, nothing to reconcile
		case o.Kind.Sticky():
			// context switch on a sticky kind: keep the old value active
			// and leave the new one recorded in EntityMap only, since
			// sticky kinds (budget, group size, dates) commonly apply to
			// more than one destination in the same conversation.
		default:
			// singleton kind (destination and anything else non-sticky):
			// the most recent mention wins the active view outright.
			s.ActiveEntities[o.Kind] = o.Value
		}
	}
}
