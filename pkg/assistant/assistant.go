// Package assistant defines the voice assistant's conversational
// policy: a system prompt that keeps spoken replies short and forces
// heavy generative work through the batch-delegation tools, plus the
// three tools themselves.
package assistant

import (
	"sync"

	"github.com/chriscow/voicetask/pkg/task"
	"github.com/chriscow/voicetask/pkg/voice"
)

// SystemPrompt steers the conversational model. Two rules matter most:
// answers stay short because this is a voice channel, and anything that
// would take real work gets delegated through submit_batch_task instead
// of being attempted inline.
const SystemPrompt = `You are a helpful voice assistant.
Keep ALL responses short - 2 to 3 sentences maximum. This is a voice conversation, not a written essay.
Avoid complex formatting, bullet points, or special characters.

When the user interrupts you or asks you to stop/calm down, immediately acknowledge it and stop talking about the previous topic. Always prioritize the user's latest message over continuing your previous response.

IMPORTANT: For complex tasks requiring detailed work such as:
- Creating business plans, marketing plans, or strategies
- Writing long documents, reports, or analyses
- Detailed research or comprehensive summaries
- Any task that would require more than 2-3 sentences to answer properly

You MUST use the submit_batch_task tool to offload the work.
Tell the user you're submitting their request and they'll be notified when ready.
Do NOT attempt these complex tasks yourself - always use the batch tool.

When a task completes, use get_task_result to read the full results.

For simple questions and short conversations, respond normally but keep it brief.`

// GreetingInstructions is the instruction used to generate the opening
// reply when a session starts.
const GreetingInstructions = "Greet the user and ask how you can help."

// Assistant binds the task manager and store to the tool surface the
// language model sees. The live session is attached after construction
// because the session itself is built with these tools.
type Assistant struct {
	manager *task.Manager
	store   *task.Store

	mu      sync.RWMutex
	session task.Speaker
}

// New creates an Assistant over the given task manager.
func New(manager *task.Manager) *Assistant {
	return &Assistant{
		manager: manager,
		store:   manager.Store(),
	}
}

// BindSession attaches the live session so submitted tasks can notify
// the user when they finish. Must be called before the first
// submit_batch_task call for notifications to reach the user.
func (a *Assistant) BindSession(s task.Speaker) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
}

func (a *Assistant) speaker() task.Speaker {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

// Tools returns the assistant's callable tools in a stable order.
func (a *Assistant) Tools() []voice.Tool {
	return []voice.Tool{
		&submitTool{assistant: a},
		&statusTool{assistant: a},
		&resultTool{assistant: a},
	}
}
