package matchview

import "github.com/Rowan-T/clover/pkg/models"

// Reconcile merges a cached snapshot with an authoritative fetch. A
// non-empty authoritative set replaces the view outright and the cache
// should be cleared; an empty authoritative set is treated as possibly
// transient, so a non-empty cached snapshot is retained instead of blanking
// the view. Pure, so the policy is testable without any store or cache.
func Reconcile(cached, authoritative []models.MatchRecord) (final []models.MatchRecord, clearCache bool) {
	if len(authoritative) > 0 {
		return authoritative, true
	}
	if len(cached) > 0 {
		return cached, false
	}
	return nil, false
}
