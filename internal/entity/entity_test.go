package entity

import (
	"strings"
	"testing"
	"time"
)

func TestNeedsSync(t *testing.T) {
	tests := []struct {
		status SyncStatus
		want   bool
	}{
		{StatusPending, true},
		{StatusFailed, true},
		{StatusSyncing, false},
		{StatusSynced, false},
	}

	for _, tt := range tests {
		if got := tt.status.NeedsSync(); got != tt.want {
			t.Errorf("%s.NeedsSync() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestOutboxItemValidate(t *testing.T) {
	valid := func() *OutboxItem {
		return &OutboxItem{
			ID:         NewID(),
			EntityType: TypePhoto,
			EntityID:   NewID(),
			Operation:  OpCreate,
			Priority:   PriorityNormal,
			CreatedAt:  time.Now().UTC(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*OutboxItem)
		wantErr bool
	}{
		{"valid item", func(it *OutboxItem) {}, false},
		{"missing id", func(it *OutboxItem) { it.ID = "" }, true},
		{"unknown entity type", func(it *OutboxItem) { it.EntityType = "widget" }, true},
		{"missing entity id", func(it *OutboxItem) { it.EntityID = "" }, true},
		{"unknown operation", func(it *OutboxItem) { it.Operation = "upsert" }, true},
		{"priority below range", func(it *OutboxItem) { it.Priority = -1 }, true},
		{"priority above range", func(it *OutboxItem) { it.Priority = 4 }, true},
		{"negative retry count", func(it *OutboxItem) { it.RetryCount = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := valid()
			tt.mutate(it)
			err := it.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPhotoValidate(t *testing.T) {
	base := Photo{
		ID:        NewID(),
		ProjectID: NewID(),
		MediaType: "image/jpeg",
	}

	p := base
	if err := p.Validate(); err == nil {
		t.Error("Validate() with no local path or remote url succeeded, want error")
	}

	p = base
	p.LocalPath = "/data/media/x.jpg"
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() with local path error = %v", err)
	}

	// Server-originated photos carry only a remote URL.
	p = base
	p.RemoteURL = "https://media.example/x.jpg"
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() with remote url error = %v", err)
	}
}

func TestProjectValidate_NameLength(t *testing.T) {
	p := Project{ID: NewID(), Name: strings.Repeat("x", 201)}
	if err := p.Validate(); err == nil {
		t.Error("Validate() with 201-char name succeeded, want error")
	}
	p.Name = strings.Repeat("x", 200)
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() with 200-char name error = %v", err)
	}
}

func TestPriorityString(t *testing.T) {
	tests := []struct {
		p    Priority
		want string
	}{
		{PriorityLow, "low"},
		{PriorityNormal, "normal"},
		{PriorityHigh, "high"},
		{PriorityCritical, "critical"},
		{Priority(9), "priority(9)"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Priority(%d).String() = %q, want %q", int(tt.p), got, tt.want)
		}
	}
}
