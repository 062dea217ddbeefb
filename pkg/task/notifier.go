package task

import (
	"context"
	"fmt"
)

// Speaker is the slice of the live conversation session the task layer
// needs: cut off whatever is playing and get a message to the user.
type Speaker interface {
	// Interrupt cancels any in-flight agent speech.
	Interrupt()

	// Say speaks literal text, bypassing the language model.
	Say(ctx context.Context, text string) error

	// GenerateReply asks the conversational model to produce and speak
	// a reply following the given instructions.
	GenerateReply(ctx context.Context, instructions string) error
}

// Notifier delivers a task-outcome announcement into the live session.
type Notifier interface {
	// NotifyReady announces a completed task.
	NotifyReady(ctx context.Context, s Speaker, description string) error

	// NotifyFailed announces a task that ended in a non-completed
	// terminal status.
	NotifyFailed(ctx context.Context, s Speaker, description string, status Status) error
}

// DirectSpeechNotifier interrupts current speech and speaks a fixed
// announcement directly through TTS. Bypassing the language model keeps
// the notification reliable even when the model is mid-generation.
type DirectSpeechNotifier struct{}

func (DirectSpeechNotifier) NotifyReady(ctx context.Context, s Speaker, description string) error {
	s.Interrupt()
	return s.Say(ctx, fmt.Sprintf("Your task '%s' is ready. Would you like me to read the results?", description))
}

func (DirectSpeechNotifier) NotifyFailed(ctx context.Context, s Speaker, description string, status Status) error {
	s.Interrupt()
	return s.Say(ctx, fmt.Sprintf("Sorry, your task '%s' has %s. Would you like me to try again?", description, status))
}

// ModelReplyNotifier interrupts current speech and asks the
// conversational model to phrase the announcement itself. Less
// predictable than DirectSpeechNotifier but matches the agent's voice.
type ModelReplyNotifier struct{}

func (ModelReplyNotifier) NotifyReady(ctx context.Context, s Speaker, description string) error {
	s.Interrupt()
	return s.GenerateReply(ctx, fmt.Sprintf(
		"Tell the user their task '%s' is ready and ask if they would like to hear the results.", description))
}

func (ModelReplyNotifier) NotifyFailed(ctx context.Context, s Speaker, description string, status Status) error {
	s.Interrupt()
	return s.GenerateReply(ctx, fmt.Sprintf(
		"Apologize to the user: their task '%s' has %s. Ask if they would like to try again.", description, status))
}
