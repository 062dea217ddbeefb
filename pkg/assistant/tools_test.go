package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/voicetask/pkg/task"
	"github.com/chriscow/voicetask/pkg/voice"
)

// stubBatchAPI accepts submissions and never finishes them.
type stubBatchAPI struct {
	batches int
}

func (s *stubBatchAPI) CreateFileBytes(ctx context.Context, req openai.FileBytesRequest) (openai.File, error) {
	return openai.File{ID: "file_1"}, nil
}

func (s *stubBatchAPI) CreateBatch(ctx context.Context, req openai.CreateBatchRequest) (openai.BatchResponse, error) {
	s.batches++
	return openai.BatchResponse{Batch: openai.Batch{ID: fmt.Sprintf("batch_%d", s.batches), Status: "validating"}}, nil
}

func (s *stubBatchAPI) RetrieveBatch(ctx context.Context, batchID string) (openai.BatchResponse, error) {
	return openai.BatchResponse{Batch: openai.Batch{ID: batchID, Status: "in_progress"}}, nil
}

func (s *stubBatchAPI) GetFileContent(ctx context.Context, fileID string) (openai.RawResponse, error) {
	return openai.RawResponse{ReadCloser: io.NopCloser(strings.NewReader(""))}, nil
}

func newTestAssistant(t *testing.T) (*Assistant, *task.Store) {
	t.Helper()

	store := task.NewStore(filepath.Join(t.TempDir(), "tasks_results.json"))
	manager, err := task.NewManager(context.Background(), task.ManagerConfig{
		Client:       &stubBatchAPI{},
		Store:        store,
		Cooldown:     time.Minute,
		PollInterval: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		manager.Shutdown(ctx)
	})
	return New(manager), store
}

func toolByName(t *testing.T, a *Assistant, name string) voice.Tool {
	t.Helper()
	for _, tool := range a.Tools() {
		if tool.Definition().Name == name {
			return tool
		}
	}
	t.Fatalf("tool %q not found", name)
	return nil
}

func callTool(t *testing.T, tool voice.Tool, args any) string {
	t.Helper()
	data, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	result, err := tool.Call(context.Background(), data)
	if err != nil {
		t.Fatalf("tool call returned error: %v", err)
	}
	return result
}

func TestToolDefinitions(t *testing.T) {
	a, _ := newTestAssistant(t)

	var names []string
	for _, tool := range a.Tools() {
		names = append(names, tool.Definition().Name)
	}
	want := []string{"submit_batch_task", "check_task_status", "get_task_result"}
	if len(names) != len(want) {
		t.Fatalf("expected %d tools, got %v", len(want), names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("tool %d = %q, want %q", i, names[i], name)
		}
	}
}

func TestSubmitTool(t *testing.T) {
	a, store := newTestAssistant(t)
	tool := toolByName(t, a, "submit_batch_task")

	result := callTool(t, tool, map[string]string{
		"task_description": "business plan for coffee shop",
		"detailed_prompt":  "Write a complete business plan for a specialty coffee shop.",
	})

	if !strings.Contains(result, "submitted successfully") {
		t.Fatalf("unexpected result: %q", result)
	}
	if !strings.Contains(result, "Job ID: batch_1") {
		t.Fatalf("result should carry the job id: %q", result)
	}

	rec, ok, err := store.Get("batch_1")
	if err != nil || !ok {
		t.Fatalf("record missing: ok=%v err=%v", ok, err)
	}
	if rec.Status != task.StatusProcessing {
		t.Fatalf("expected processing, got %s", rec.Status)
	}
}

func TestSubmitToolRateLimited(t *testing.T) {
	a, store := newTestAssistant(t)
	tool := toolByName(t, a, "submit_batch_task")

	callTool(t, tool, map[string]string{
		"task_description": "plan",
		"detailed_prompt":  "first",
	})

	result := callTool(t, tool, map[string]string{
		"task_description": "plan again",
		"detailed_prompt":  "second",
	})
	if result != "A task was already submitted recently. Please wait for it to complete." {
		t.Fatalf("unexpected rate-limited message: %q", result)
	}

	records, _ := store.Load()
	if len(records) != 1 {
		t.Fatalf("second submission must not create a record, got %d", len(records))
	}
}

func TestStatusToolEmpty(t *testing.T) {
	a, _ := newTestAssistant(t)
	tool := toolByName(t, a, "check_task_status")

	result := callTool(t, tool, map[string]string{})
	if result != "No tasks found." {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestStatusToolListsAll(t *testing.T) {
	a, store := newTestAssistant(t)
	tool := toolByName(t, a, "check_task_status")

	store.Put("batch_1", task.Record{Description: "plan", Status: task.StatusProcessing})
	store.Put("batch_2", task.Record{Description: "report", Status: task.StatusFailed})

	result := callTool(t, tool, map[string]string{})
	if !strings.HasPrefix(result, "Tasks:") {
		t.Fatalf("unexpected prefix: %q", result)
	}
	if !strings.Contains(result, "Job batch_1: plan - processing") {
		t.Errorf("missing batch_1 line: %q", result)
	}
	if !strings.Contains(result, "Job batch_2: report - failed") {
		t.Errorf("missing batch_2 line: %q", result)
	}
}

func TestResultToolUnknownJob(t *testing.T) {
	a, _ := newTestAssistant(t)
	tool := toolByName(t, a, "get_task_result")

	result := callTool(t, tool, map[string]string{"job_id": "nope"})
	if result != "No task found with job ID: nope" {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestResultToolStillProcessing(t *testing.T) {
	a, store := newTestAssistant(t)
	tool := toolByName(t, a, "get_task_result")

	store.Put("batch_1", task.Record{Description: "plan", Status: task.StatusProcessing})

	result := callTool(t, tool, map[string]string{"job_id": "batch_1"})
	if result != "Task 'plan' is still processing. Please wait." {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestResultToolCompleted(t *testing.T) {
	a, store := newTestAssistant(t)
	tool := toolByName(t, a, "get_task_result")

	text := "Plan: open near the station."
	store.Put("batch_1", task.Record{Description: "plan", Status: task.StatusCompleted, Result: &text})

	result := callTool(t, tool, map[string]string{"job_id": "batch_1"})
	want := "Results for 'plan':\n\n" + text
	if result != want {
		t.Fatalf("got %q, want %q", result, want)
	}
}

func TestResultToolCompletedWithoutResult(t *testing.T) {
	a, store := newTestAssistant(t)
	tool := toolByName(t, a, "get_task_result")

	store.Put("batch_1", task.Record{Description: "plan", Status: task.StatusCompleted})

	result := callTool(t, tool, map[string]string{"job_id": "batch_1"})
	if result != "Task completed but no results were saved." {
		t.Fatalf("unexpected result: %q", result)
	}
}
