package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name      string
		old       *Snapshot
		new       *Snapshot
		wantNil   bool
		wantState *State
		wantInv   *int
	}{
		{
			name:      "Initial Load (Old is Nil)",
			old:       nil,
			new:       &Snapshot{MachineID: "m-1", State: StateNoPayment, Inventory: 5},
			wantState: ptr(StateNoPayment),
			wantInv:   ptr(5),
		},
		{
			name:    "No Changes",
			old:     &Snapshot{MachineID: "m-1", State: StateNoPayment, Inventory: 5},
			new:     &Snapshot{MachineID: "m-1", State: StateNoPayment, Inventory: 5},
			wantNil: true,
		},
		{
			name:      "State Only",
			old:       &Snapshot{MachineID: "m-1", State: StateNoPayment, Inventory: 5},
			new:       &Snapshot{MachineID: "m-1", State: StateHasPayment, Inventory: 5},
			wantState: ptr(StateHasPayment),
		},
		{
			name:      "Dispense To Sold Out",
			old:       &Snapshot{MachineID: "m-1", State: StateHasPayment, Inventory: 1},
			new:       &Snapshot{MachineID: "m-1", State: StateSoldOut, Inventory: 0},
			wantState: ptr(StateSoldOut),
			wantInv:   ptr(0),
		},
		{
			name:    "Nil New",
			old:     &Snapshot{MachineID: "m-1"},
			new:     nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Diff() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Diff() = nil, want diff")
			}
			if got.MachineID != tt.new.MachineID {
				t.Errorf("Diff().MachineID = %v, want %v", got.MachineID, tt.new.MachineID)
			}
			if !equalPtr(got.State, tt.wantState) {
				t.Errorf("Diff().State = %v, want %v", got.State, tt.wantState)
			}
			if !equalPtr(got.Inventory, tt.wantInv) {
				t.Errorf("Diff().Inventory = %v, want %v", got.Inventory, tt.wantInv)
			}
		})
	}
}

func TestDiffJSONSerialization(t *testing.T) {
	diff := Diff(
		&Snapshot{MachineID: "m-1", State: StateNoPayment, Inventory: 3},
		&Snapshot{MachineID: "m-1", State: StateHasPayment, Inventory: 3},
	)
	if diff == nil {
		t.Fatal("Expected diff, got nil")
	}

	bytes, _ := json.Marshal(diff)
	if strings.Contains(string(bytes), `"inventory"`) {
		t.Errorf("JSON should not contain 'inventory' when unchanged, got: %s", string(bytes))
	}
	if !strings.Contains(string(bytes), `"state":"has_payment"`) {
		t.Errorf("JSON should contain the new state, got: %s", string(bytes))
	}
}

func ptr[T any](v T) *T {
	return &v
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
