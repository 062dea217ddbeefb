package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chriscow/voicetask/pkg/ai/llm"
	"github.com/chriscow/voicetask/pkg/task"
)

// Tool results are spoken aloud by the model, so every path returns
// plain explanatory text; errors surface as messages the model can
// relay, never as call failures.

// submitTool delegates a complex task to the batch API.
type submitTool struct {
	assistant *Assistant
}

func (t *submitTool) Definition() llm.FunctionDefinition {
	return llm.FunctionDefinition{
		Name: "submit_batch_task",
		Description: "Submit a complex task to the batch processing API for thorough completion. " +
			"Use for business plans, long documents, detailed research, or anything needing more than a few sentences.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_description": map[string]any{
					"type":        "string",
					"description": "Brief description of the task (e.g., \"business plan for coffee shop\")",
				},
				"detailed_prompt": map[string]any{
					"type":        "string",
					"description": "Full detailed prompt with all context and requirements for the task",
				},
			},
			"required": []string{"task_description", "detailed_prompt"},
		},
	}
}

func (t *submitTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		TaskDescription string `json:"task_description"`
		DetailedPrompt  string `json:"detailed_prompt"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return fmt.Sprintf("Failed to submit task: invalid arguments: %s", err), nil
	}

	jobID, err := t.assistant.manager.Submit(ctx, params.TaskDescription, params.DetailedPrompt, t.assistant.speaker())
	if errors.Is(err, task.ErrRateLimited) {
		return "A task was already submitted recently. Please wait for it to complete.", nil
	}
	if err != nil {
		return fmt.Sprintf("Failed to submit task: %s", err), nil
	}

	return fmt.Sprintf("Task '%s' submitted successfully. Job ID: %s. The user will be notified when complete.",
		params.TaskDescription, jobID), nil
}

// statusTool lists every submitted task with its current status.
type statusTool struct {
	assistant *Assistant
}

func (t *statusTool) Definition() llm.FunctionDefinition {
	return llm.FunctionDefinition{
		Name:        "check_task_status",
		Description: "Check the status of all submitted batch tasks.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

func (t *statusTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	records, err := t.assistant.store.Load()
	if err != nil {
		return fmt.Sprintf("Failed to check task status: %s", err), nil
	}
	if len(records) == 0 {
		return "No tasks found.", nil
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("Tasks:")
	for _, id := range ids {
		rec := records[id]
		fmt.Fprintf(&b, "\nJob %s: %s - %s", id, rec.Description, rec.Status)
	}
	return b.String(), nil
}

// resultTool reads back the stored output of a completed task.
type resultTool struct {
	assistant *Assistant
}

func (t *resultTool) Definition() llm.FunctionDefinition {
	return llm.FunctionDefinition{
		Name:        "get_task_result",
		Description: "Get the full result of a completed batch task.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"job_id": map[string]any{
					"type":        "string",
					"description": "The job ID of the task to retrieve results for",
				},
			},
			"required": []string{"job_id"},
		},
	}
}

func (t *resultTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return fmt.Sprintf("Failed to get task result: invalid arguments: %s", err), nil
	}

	rec, ok, err := t.assistant.store.Get(params.JobID)
	if err != nil {
		return fmt.Sprintf("Failed to get task result: %s", err), nil
	}
	if !ok {
		return fmt.Sprintf("No task found with job ID: %s", params.JobID), nil
	}

	if rec.Status != task.StatusCompleted {
		return fmt.Sprintf("Task '%s' is still %s. Please wait.", rec.Description, rec.Status), nil
	}
	if rec.Result == nil || *rec.Result == "" {
		return "Task completed but no results were saved.", nil
	}
	return fmt.Sprintf("Results for '%s':\n\n%s", rec.Description, *rec.Result), nil
}
