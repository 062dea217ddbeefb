// Package worker maintains the connection to the agent dispatch server
// and runs one agent entrypoint per assigned room.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Signal and command type constants.
const (
	SignalTypePing     = "ping"
	SignalTypePong     = "pong"
	SignalTypeStartJob = "startJob"
	SignalTypeShutdown = "shutdown"

	CommandTypeJobStatus = "jobStatus"
)

// Entrypoint runs one agent session in the given room. It is invoked
// in its own goroutine for every startJob signal and should return when
// the session ends.
type Entrypoint func(ctx context.Context, roomName string) error

type Worker struct {
	url            string
	token          string
	entrypoint     Entrypoint
	wsClient       *WebSocketClient
	logger         *slog.Logger
	in             chan *Signal
	out            chan *Command
	jobs           sync.WaitGroup
	mu             sync.RWMutex
	connected      bool
	backoffAttempt int
}

type Config struct {
	URL        string
	Token      string
	Entrypoint Entrypoint
}

func New(config Config, logger *slog.Logger) *Worker {
	return &Worker{
		url:        config.URL,
		token:      config.Token,
		entrypoint: config.Entrypoint,
		logger:     logger,
		in:         make(chan *Signal, 100),
		out:        make(chan *Command, 100),
		wsClient:   NewWebSocketClient(config.URL, config.Token, logger),
	}
}

// Run connects to the dispatch server and processes signals until ctx
// is cancelled, reconnecting with backoff on failure.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Starting worker", slog.String("url", w.url))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker shutting down")
			return w.shutdown()
		default:
			if err := w.connectAndRun(ctx); err != nil {
				w.logger.Error("Worker connection failed", slog.String("error", err.Error()))

				if err := w.backoffDelay(ctx); err != nil {
					return err
				}
				continue
			}
		}
	}
}

func (w *Worker) connectAndRun(ctx context.Context) error {
	w.logger.Info("Connecting to dispatch server")

	if err := w.wsClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if err := w.wsClient.Close(); err != nil {
			w.logger.Error("Error closing WebSocket during cleanup", slog.String("error", err.Error()))
		}
	}()

	w.setConnected(true)
	defer w.setConnected(false)

	readCtx, readCancel := context.WithCancel(ctx)
	defer readCancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.readSignals(readCtx); err != nil {
			errCh <- fmt.Errorf("read signals: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.writeCommands(readCtx); err != nil {
			errCh <- fmt.Errorf("write commands: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.processSignals(readCtx)
	}()

	select {
	case err := <-errCh:
		readCancel()
		wg.Wait()
		return err
	case <-ctx.Done():
		readCancel()
		wg.Wait()
		return nil
	}
}

func (w *Worker) readSignals(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			signal, err := w.wsClient.ReadSignal(ctx)
			if err != nil {
				return err
			}

			select {
			case w.in <- signal:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (w *Worker) writeCommands(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-w.out:
			if err := w.wsClient.WriteCommand(ctx, cmd); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) processSignals(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case signal := <-w.in:
			w.handleSignal(ctx, signal)
		}
	}
}

func (w *Worker) handleSignal(ctx context.Context, signal *Signal) {
	w.logger.Debug("Processing signal", slog.String("type", signal.Type))

	switch signal.Type {
	case SignalTypePing:
		w.send(ctx, &Command{Type: SignalTypePong, Data: signal.Data})

	case SignalTypeStartJob:
		w.startJob(ctx, signal)

	case SignalTypeShutdown:
		w.logger.Info("Received shutdown signal")
		// Graceful shutdown is handled by context cancellation.

	default:
		w.logger.Warn("Unknown signal type", slog.String("type", signal.Type))
	}
}

// startJob launches the entrypoint for the assigned room.
func (w *Worker) startJob(ctx context.Context, signal *Signal) {
	roomName, _ := signal.Data["room"].(string)
	if roomName == "" {
		w.logger.Warn("startJob signal missing room name")
		return
	}
	if w.entrypoint == nil {
		w.logger.Warn("no entrypoint configured, ignoring startJob",
			slog.String("room", roomName))
		return
	}

	w.logger.Info("Starting job", slog.String("room", roomName))

	w.jobs.Add(1)
	go func() {
		defer w.jobs.Done()

		err := w.entrypoint(ctx, roomName)

		status := "completed"
		if err != nil {
			status = "failed"
			w.logger.Error("Job failed",
				slog.String("room", roomName),
				slog.String("error", err.Error()))
		}
		w.send(ctx, &Command{
			Type: CommandTypeJobStatus,
			Data: map[string]any{"room": roomName, "status": status},
		})
	}()
}

func (w *Worker) send(ctx context.Context, cmd *Command) {
	select {
	case w.out <- cmd:
	case <-ctx.Done():
	default:
		// Channel full, skip sending.
	}
}

func (w *Worker) backoffDelay(ctx context.Context) error {
	w.mu.Lock()
	w.backoffAttempt++
	attempt := w.backoffAttempt
	w.mu.Unlock()

	// Exponential backoff: 1s, 2s, 4s, 8s, up to 10s max
	delay := time.Duration(math.Min(math.Pow(2, float64(attempt-1)), 10)) * time.Second

	w.logger.Info("Reconnecting with backoff",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) setConnected(connected bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if connected && !w.connected {
		w.backoffAttempt = 0
		w.logger.Info("Worker connected successfully")
	}
	w.connected = connected
}

func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *Worker) shutdown() error {
	w.logger.Info("Shutting down worker")

	// Let any running jobs finish before tearing down the connection.
	w.jobs.Wait()

	close(w.out)

	if err := w.wsClient.Close(); err != nil {
		w.logger.Error("Error closing WebSocket", slog.String("error", err.Error()))
		return err
	}

	w.logger.Info("Worker shutdown complete")
	return nil
}
