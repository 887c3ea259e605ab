package rooms

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&room.Room{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// fakeMembership is an in-memory Membership for testing.
type fakeMembership struct {
	mu          sync.Mutex
	records     map[string]room.Record
	registerErr error
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{records: make(map[string]room.Record)}
}

func (f *fakeMembership) Register(_ context.Context, rec room.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return f.registerErr
	}
	f.records[rec.RoomID] = rec
	return nil
}

func (f *fakeMembership) Remove(_ context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, roomID)
	return nil
}

func (f *fakeMembership) Get(_ context.Context, roomID string) (room.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[roomID]
	if !ok {
		return room.Record{}, room.ErrRoomNotFound
	}
	return rec, nil
}

func (f *fakeMembership) setCurrent(roomID string, current int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[roomID]
	rec.Current = current
	f.records[roomID] = rec
}

func newTestService(t *testing.T) (*Service, *fakeMembership) {
	t.Helper()
	membership := newFakeMembership()
	return NewService(NewRepository(setupTestDB(t)), membership), membership
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	service, membership := newTestService(t)

	tests := []struct {
		name        string
		req         CreateRoomRequest
		expectError bool
	}{
		{
			name: "valid room",
			req:  CreateRoomRequest{Title: "Study", Tags: []string{"go", "focus"}, Theme: "forest", Capacity: 4, ModeratorUID: "mod-1"},
		},
		{
			name:        "empty title",
			req:         CreateRoomRequest{Title: "  ", Capacity: 4, ModeratorUID: "mod-1"},
			expectError: true,
		},
		{
			name:        "capacity zero",
			req:         CreateRoomRequest{Title: "Study", Capacity: 0, ModeratorUID: "mod-1"},
			expectError: true,
		},
		{
			name:        "capacity above maximum",
			req:         CreateRoomRequest{Title: "Study", Capacity: room.MaxCapacity + 1, ModeratorUID: "mod-1"},
			expectError: true,
		},
		{
			name:        "missing moderator",
			req:         CreateRoomRequest{Title: "Study", Capacity: 4},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := service.Create(ctx, tt.req)

			if tt.expectError {
				if err == nil {
					t.Fatal("Create() expected error, got nil")
				}
				if room.KindOf(err) != room.KindValidation {
					t.Errorf("Create() error kind = %v, want ValidationError", room.KindOf(err))
				}
				return
			}

			if err != nil {
				t.Fatalf("Create() unexpected error: %v", err)
			}
			if view.ID == "" {
				t.Error("Create() view.ID should not be empty")
			}
			if len(view.Tags) != 2 {
				t.Errorf("Create() tags = %v, want 2 tags", view.Tags)
			}

			rec, err := membership.Get(ctx, view.ID)
			if err != nil {
				t.Fatalf("membership record not registered: %v", err)
			}
			if rec.Total != tt.req.Capacity || rec.Moderator != tt.req.ModeratorUID || rec.Current != 0 {
				t.Errorf("membership record = %+v", rec)
			}
		})
	}
}

func TestService_CreateRollsBackOnMembershipFailure(t *testing.T) {
	ctx := context.Background()
	service, membership := newTestService(t)
	membership.registerErr = errors.New("redis down")

	if _, err := service.Create(ctx, CreateRoomRequest{Title: "Study", Capacity: 2, ModeratorUID: "mod"}); err == nil {
		t.Fatal("Create() expected error")
	}

	views, err := service.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("List() = %d rooms, want 0 after rollback", len(views))
	}
}

func TestService_GetAndList(t *testing.T) {
	ctx := context.Background()
	service, membership := newTestService(t)

	created, err := service.Create(ctx, CreateRoomRequest{Title: "Study", Capacity: 3, ModeratorUID: "mod"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	membership.setCurrent(created.ID, 2)

	got, err := service.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Current != 2 || got.Total != 3 {
		t.Errorf("Get() occupancy = %d/%d, want 2/3", got.Current, got.Total)
	}

	if _, err := service.Get(ctx, "missing"); !errors.Is(err, room.ErrRoomNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrRoomNotFound", err)
	}

	views, err := service.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(views) != 1 || views[0].Current != 2 {
		t.Errorf("List() = %+v", views)
	}
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	service, membership := newTestService(t)

	created, err := service.Create(ctx, CreateRoomRequest{Title: "Study", Capacity: 3, ModeratorUID: "mod"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	membership.setCurrent(created.ID, 1)

	tests := []struct {
		name      string
		id        string
		requester string
		wantErr   error
	}{
		{"unknown room", "missing", "mod", room.ErrRoomNotFound},
		{"not moderator", created.ID, "someone", room.ErrNotModerator},
		{"room not empty", created.ID, "mod", room.ErrRoomNotEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.Delete(ctx, tt.id, tt.requester)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Delete() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	membership.setCurrent(created.ID, 0)
	if err := service.Delete(ctx, created.ID, "mod"); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
	if _, err := membership.Get(ctx, created.ID); !errors.Is(err, room.ErrRoomNotFound) {
		t.Error("Delete() should remove the membership record")
	}
	if _, err := service.LoadRecord(ctx, created.ID); !errors.Is(err, room.ErrRoomNotFound) {
		t.Error("LoadRecord() should not find a deleted room")
	}
}

func TestService_LoadRecord(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	created, err := service.Create(ctx, CreateRoomRequest{Title: "Study", Capacity: 5, ModeratorUID: "mod"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	rec, err := service.LoadRecord(ctx, created.ID)
	if err != nil {
		t.Fatalf("LoadRecord() error: %v", err)
	}
	want := room.Record{RoomID: created.ID, Total: 5, Moderator: "mod"}
	if *rec != want {
		t.Errorf("LoadRecord() = %+v, want %+v", *rec, want)
	}
}
