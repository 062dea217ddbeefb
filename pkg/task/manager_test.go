package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// fakeBatchAPI scripts the remote batch provider. RetrieveBatch walks
// the statuses slice, repeating the last entry.
type fakeBatchAPI struct {
	mu sync.Mutex

	files     []openai.FileBytesRequest
	batches   []openai.CreateBatchRequest
	statuses  []openai.BatchResponse
	statusIdx int
	content   map[string]string

	createFileErr  error
	createBatchErr error
	retrieveErrs   []error
}

func (f *fakeBatchAPI) CreateFileBytes(ctx context.Context, req openai.FileBytesRequest) (openai.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createFileErr != nil {
		return openai.File{}, f.createFileErr
	}
	f.files = append(f.files, req)
	return openai.File{ID: fmt.Sprintf("file_%d", len(f.files))}, nil
}

func (f *fakeBatchAPI) CreateBatch(ctx context.Context, req openai.CreateBatchRequest) (openai.BatchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createBatchErr != nil {
		return openai.BatchResponse{}, f.createBatchErr
	}
	f.batches = append(f.batches, req)
	return openai.BatchResponse{Batch: openai.Batch{ID: fmt.Sprintf("batch_%d", len(f.batches)), Status: "validating"}}, nil
}

func (f *fakeBatchAPI) RetrieveBatch(ctx context.Context, batchID string) (openai.BatchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.retrieveErrs) > 0 {
		err := f.retrieveErrs[0]
		f.retrieveErrs = f.retrieveErrs[1:]
		if err != nil {
			return openai.BatchResponse{}, err
		}
	}

	if len(f.statuses) == 0 {
		return openai.BatchResponse{Batch: openai.Batch{ID: batchID, Status: "in_progress"}}, nil
	}
	resp := f.statuses[f.statusIdx]
	if f.statusIdx < len(f.statuses)-1 {
		f.statusIdx++
	}
	return resp, nil
}

func (f *fakeBatchAPI) GetFileContent(ctx context.Context, fileID string) (openai.RawResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.content[fileID]
	if !ok {
		return openai.RawResponse{}, fmt.Errorf("no such file: %s", fileID)
	}
	return openai.RawResponse{ReadCloser: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeBatchAPI) uploadedLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lines []string
	for _, file := range f.files {
		lines = append(lines, string(file.Bytes))
	}
	return lines
}

// fakeSpeaker records notifications from pollers.
type fakeSpeaker struct {
	mu         sync.Mutex
	interrupts int
	said       []string
	notified   chan struct{}
}

func newFakeSpeaker() *fakeSpeaker {
	return &fakeSpeaker{notified: make(chan struct{}, 4)}
}

func (s *fakeSpeaker) Interrupt() {
	s.mu.Lock()
	s.interrupts++
	s.mu.Unlock()
}

func (s *fakeSpeaker) Say(ctx context.Context, text string) error {
	s.mu.Lock()
	s.said = append(s.said, text)
	s.mu.Unlock()
	s.notified <- struct{}{}
	return nil
}

func (s *fakeSpeaker) GenerateReply(ctx context.Context, instructions string) error {
	return s.Say(ctx, instructions)
}

func (s *fakeSpeaker) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.said))
	copy(out, s.said)
	return out
}

func (s *fakeSpeaker) waitNotified(t *testing.T) {
	t.Helper()
	select {
	case <-s.notified:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func outputFile(id string) *string { return &id }

func completedResponse(fileID string) openai.BatchResponse {
	return openai.BatchResponse{Batch: openai.Batch{Status: "completed", OutputFileID: outputFile(fileID)}}
}

func newTestManager(t *testing.T, api *fakeBatchAPI) (*Manager, *Store) {
	t.Helper()

	store := newTestStore(t)
	manager, err := NewManager(context.Background(), ManagerConfig{
		Client:       api,
		Store:        store,
		Cooldown:     time.Minute,
		PollInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		manager.Shutdown(ctx)
	})
	return manager, store
}

func TestSubmitCreatesRecordAndPoller(t *testing.T) {
	api := &fakeBatchAPI{}
	manager, store := newTestManager(t, api)

	jobID, err := manager.Submit(context.Background(), "coffee shop business plan",
		"Write a detailed business plan for a coffee shop.", nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if jobID != "batch_1" {
		t.Fatalf("unexpected job id %q", jobID)
	}

	rec, ok, err := store.Get(jobID)
	if err != nil || !ok {
		t.Fatalf("record not stored: ok=%v err=%v", ok, err)
	}
	if rec.Status != StatusProcessing {
		t.Fatalf("expected processing, got %s", rec.Status)
	}
	if rec.Result != nil {
		t.Fatal("result should be nil until completion")
	}

	running := manager.Supervisor().Running()
	if len(running) != 1 || running[0] != jobID {
		t.Fatalf("expected one running poller for %s, got %v", jobID, running)
	}

	lines := api.uploadedLines()
	if len(lines) != 1 {
		t.Fatalf("expected one uploaded file, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"custom_id":"task-1"`) {
		t.Fatalf("uploaded line missing sequential custom id: %s", lines[0])
	}
	if !strings.Contains(lines[0], "Write a detailed business plan") {
		t.Fatalf("uploaded line missing prompt: %s", lines[0])
	}

	if len(api.batches) != 1 || api.batches[0].InputFileID != "file_1" {
		t.Fatalf("batch not created from uploaded file: %+v", api.batches)
	}
}

func TestSubmitRateLimitedWithinCooldown(t *testing.T) {
	api := &fakeBatchAPI{}
	manager, store := newTestManager(t, api)

	if _, err := manager.Submit(context.Background(), "plan", "first prompt", nil); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	_, err := manager.Submit(context.Background(), "plan again", "second prompt", nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	records, _ := store.Load()
	if len(records) != 1 {
		t.Fatalf("rate-limited submit must not create a record, got %d records", len(records))
	}
}

func TestSubmitFailureLeavesNoRecord(t *testing.T) {
	api := &fakeBatchAPI{createBatchErr: errors.New("provider down")}
	manager, store := newTestManager(t, api)

	_, err := manager.Submit(context.Background(), "plan", "prompt", nil)
	if err == nil {
		t.Fatal("expected submit error")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Fatalf("provider failure should not look like rate limiting: %v", err)
	}

	records, _ := store.Load()
	if len(records) != 0 {
		t.Fatalf("failed submit must leave no partial record, got %d", len(records))
	}

	if running := manager.Supervisor().Running(); len(running) != 0 {
		t.Fatalf("failed submit must not start a poller, got %v", running)
	}
}

func TestCompletedTaskStoredAndAnnounced(t *testing.T) {
	line := `{"response":{"body":{"choices":[{"message":{"content":"Plan: start with one location near the station."}}]}}}`
	api := &fakeBatchAPI{
		statuses: []openai.BatchResponse{
			{Batch: openai.Batch{Status: "in_progress"}},
			completedResponse("out_1"),
		},
		content: map[string]string{"out_1": line + "\n"},
	}
	manager, store := newTestManager(t, api)
	speaker := newFakeSpeaker()

	jobID, err := manager.Submit(context.Background(), "coffee shop business plan",
		"Write a detailed business plan.", speaker)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	speaker.waitNotified(t)
	manager.Supervisor().Wait(jobID)

	rec, _, err := store.Get(jobID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", rec.Status)
	}
	if rec.Result == nil || !strings.HasPrefix(*rec.Result, "Plan:") {
		t.Fatalf("result not extracted: %+v", rec)
	}

	said := speaker.spoken()
	want := "Your task 'coffee shop business plan' is ready. Would you like me to read the results?"
	if len(said) != 1 || said[0] != want {
		t.Fatalf("unexpected announcement %q", said)
	}
	if speaker.interrupts != 1 {
		t.Fatalf("notification must interrupt current speech, interrupts=%d", speaker.interrupts)
	}

	if running := manager.Supervisor().Running(); len(running) != 0 {
		t.Fatalf("poller should have stopped, still running: %v", running)
	}
}

func TestExpiredTaskAnnouncesApologyAndStops(t *testing.T) {
	api := &fakeBatchAPI{
		statuses: []openai.BatchResponse{
			{Batch: openai.Batch{Status: "in_progress"}},
			{Batch: openai.Batch{Status: "expired"}},
		},
	}
	manager, store := newTestManager(t, api)
	speaker := newFakeSpeaker()

	jobID, err := manager.Submit(context.Background(), "market research", "Research the market.", speaker)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	speaker.waitNotified(t)
	manager.Supervisor().Wait(jobID)

	rec, _, _ := store.Get(jobID)
	if rec.Status != StatusExpired {
		t.Fatalf("expected expired, got %s", rec.Status)
	}
	if rec.Result != nil {
		t.Fatalf("failed task must not carry a result: %+v", rec)
	}

	said := speaker.spoken()
	want := "Sorry, your task 'market research' has expired. Would you like me to try again?"
	if len(said) != 1 || said[0] != want {
		t.Fatalf("unexpected announcement %q", said)
	}
}

func TestPollerRetriesTransientErrors(t *testing.T) {
	line := `{"response":{"body":{"choices":[{"message":{"content":"Done."}}]}}}`
	api := &fakeBatchAPI{
		retrieveErrs: []error{errors.New("timeout"), errors.New("timeout")},
		statuses:     []openai.BatchResponse{completedResponse("out_1")},
		content:      map[string]string{"out_1": line},
	}
	manager, store := newTestManager(t, api)
	speaker := newFakeSpeaker()

	jobID, err := manager.Submit(context.Background(), "report", "Write a report.", speaker)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	speaker.waitNotified(t)
	manager.Supervisor().Wait(jobID)

	rec, _, _ := store.Get(jobID)
	if rec.Status != StatusCompleted {
		t.Fatalf("transient errors should not abandon the job, got %s", rec.Status)
	}
}

func TestCompletedWithoutOutputUsesFallback(t *testing.T) {
	api := &fakeBatchAPI{
		statuses: []openai.BatchResponse{{Batch: openai.Batch{Status: "completed"}}},
	}
	manager, store := newTestManager(t, api)
	speaker := newFakeSpeaker()

	jobID, err := manager.Submit(context.Background(), "summary", "Summarize.", speaker)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	speaker.waitNotified(t)
	manager.Supervisor().Wait(jobID)

	rec, _, _ := store.Get(jobID)
	if rec.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", rec.Status)
	}
	if rec.Result == nil || *rec.Result != "Task completed but no results found." {
		t.Fatalf("expected fallback result, got %+v", rec.Result)
	}
}

func TestManagerShutdownStopsPollers(t *testing.T) {
	api := &fakeBatchAPI{} // never reaches a terminal status
	manager, _ := newTestManager(t, api)

	jobID, err := manager.Submit(context.Background(), "plan", "prompt", nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := manager.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	manager.Supervisor().Wait(jobID)
	if running := manager.Supervisor().Running(); len(running) != 0 {
		t.Fatalf("pollers still running after shutdown: %v", running)
	}
}
