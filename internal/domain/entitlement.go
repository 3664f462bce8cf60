package domain

// EntitlementWindow is the derived view of how many more service lines an
// order or rental still permits. Read-only: the resolver computes it from
// the order service and the workflow's own submitted applications.
//
// Known is false when the collaborator lookup failed. An unknown window is
// treated as blocked; the workflow never assumes unlimited capacity.
type EntitlementWindow struct {
	TotalSlots int  `json:"total_slots"`
	UsedSlots  int  `json:"used_slots"`
	Known      bool `json:"-"`
}

// Remaining returns the slots still available under the window, never
// negative.
func (w EntitlementWindow) Remaining() int {
	r := w.TotalSlots - w.UsedSlots
	if r < 0 {
		return 0
	}
	return r
}

// Blocked reports whether the window short-circuits the whole workflow:
// unknown entitlement, or an exhausted window with at least one prior
// application consuming it.
func (w EntitlementWindow) Blocked() bool {
	if !w.Known {
		return true
	}
	return w.Remaining() <= 0 && w.UsedSlots > 0
}
