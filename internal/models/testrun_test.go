package models

import "testing"

func TestTestStatusTerminal(t *testing.T) {
	tests := []struct {
		status TestStatus
		want   bool
	}{
		{TestStatusPending, false},
		{TestStatusQueued, false},
		{TestStatusRunning, false},
		{TestStatusCompleted, true},
		{TestStatusFailed, true},
		{TestStatusStopped, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("Terminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestTestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from TestStatus
		to   TestStatus
		want bool
	}{
		{"pending to queued", TestStatusPending, TestStatusQueued, true},
		{"pending to running", TestStatusPending, TestStatusRunning, true},
		{"pending to failed", TestStatusPending, TestStatusFailed, true},
		{"pending to completed", TestStatusPending, TestStatusCompleted, false},
		{"queued to running", TestStatusQueued, TestStatusRunning, true},
		{"queued to stopped", TestStatusQueued, TestStatusStopped, true},
		{"queued to pending", TestStatusQueued, TestStatusPending, false},
		{"running to completed", TestStatusRunning, TestStatusCompleted, true},
		{"running to failed", TestStatusRunning, TestStatusFailed, true},
		{"running to stopped", TestStatusRunning, TestStatusStopped, true},
		{"running to queued", TestStatusRunning, TestStatusQueued, false},
		{"completed is terminal", TestStatusCompleted, TestStatusRunning, false},
		{"failed is terminal", TestStatusFailed, TestStatusRunning, false},
		{"stopped is terminal", TestStatusStopped, TestStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestActionKindValid(t *testing.T) {
	valid := []ActionKind{ActionClick, ActionType, ActionScroll, ActionNavigate, ActionWait, ActionComplete}
	for _, kind := range valid {
		if !kind.Valid() {
			t.Errorf("expected %s to be valid", kind)
		}
	}

	invalid := []ActionKind{ActionScreenshot, ActionKind("hover"), ActionKind("")}
	for _, kind := range invalid {
		if kind.Valid() {
			t.Errorf("expected %s to be invalid", kind)
		}
	}
}
