package job

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestJob_New(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config with ID",
			config: Config{
				ID:       "test-job-1",
				RoomName: "test-room",
				Timeout:  time.Minute,
			},
			wantErr: false,
		},
		{
			name: "valid config without ID",
			config: Config{
				RoomName: "test-room",
				Timeout:  time.Minute,
			},
			wantErr: false,
		},
		{
			name: "missing room name",
			config: Config{
				ID:      "test-job-1",
				Timeout: time.Minute,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := New(ctx, tt.config)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if j.ID == "" {
				t.Error("job ID should not be empty")
			}
			if tt.config.ID != "" && j.ID != tt.config.ID {
				t.Errorf("expected job ID %s, got %s", tt.config.ID, j.ID)
			}
			if j.RoomName != tt.config.RoomName {
				t.Errorf("expected room name %s, got %s", tt.config.RoomName, j.RoomName)
			}
			if j.Context == nil {
				t.Error("job context should not be nil")
			}
			if !j.IsActive() {
				t.Error("new job should be active")
			}
		})
	}
}

func TestJob_Shutdown(t *testing.T) {
	j, err := New(context.Background(), Config{RoomName: "test-room"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	j.Shutdown("test complete")

	if j.IsActive() {
		t.Error("job should not be active after shutdown")
	}

	// Wait should return promptly once shut down.
	done := make(chan error, 1)
	go func() { done <- j.Wait() }()
	select {
	case err := <-done:
		if err == nil {
			t.Error("Wait should return the context error")
		}
	case <-time.After(time.Second):
		t.Error("Wait did not return after shutdown")
	}
}

func TestJob_ShutdownIdempotent(t *testing.T) {
	j, err := New(context.Background(), Config{RoomName: "test-room"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var mu sync.Mutex
	calls := 0
	j.Context.OnShutdown(func(reason string) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	j.Shutdown("first")
	j.Shutdown("second")

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("shutdown hooks should run exactly once, ran %d times", calls)
	}
}

func TestContext_OnShutdownAfterShutdown(t *testing.T) {
	jc := NewContext(context.Background())
	jc.Shutdown("done")

	called := make(chan string, 1)
	jc.OnShutdown(func(reason string) {
		called <- reason
	})

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Error("hook registered after shutdown should run immediately")
	}
}

func TestContext_ShutdownCancelsContext(t *testing.T) {
	jc := NewContext(context.Background())

	if jc.IsShutdown() {
		t.Error("fresh context should not be shut down")
	}

	jc.Shutdown("test")

	select {
	case <-jc.Done():
	case <-time.After(time.Second):
		t.Error("Done channel not closed after shutdown")
	}
	if jc.Err() == nil {
		t.Error("Err should be non-nil after shutdown")
	}
}

func TestGenerateJobID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateJobID()
		if id == "" {
			t.Fatal("generated job ID should not be empty")
		}
		if seen[id] {
			t.Fatalf("duplicate job ID generated: %s", id)
		}
		seen[id] = true
	}
}
