package domain

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// MachineID is always present to identify the target.
	MachineID string `json:"machine_id"`

	State     *State `json:"state,omitempty"`
	Inventory *int   `json:"inventory,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap (initial load).
// It returns nil when nothing changed.
func Diff(oldSnap, newSnap *Snapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}

	diff := &SnapshotDiff{MachineID: newSnap.MachineID}

	if oldSnap == nil || oldSnap.State != newSnap.State {
		state := newSnap.State
		diff.State = &state
	}
	if oldSnap == nil || oldSnap.Inventory != newSnap.Inventory {
		inv := newSnap.Inventory
		diff.Inventory = &inv
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.State == nil && d.Inventory == nil
}
