package rtc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	webrtcmedia "github.com/pion/webrtc/v4/pkg/media"
)

// TrackPublisher publishes assistant speech to a LiveKit room.
// Frames written with WriteFrame are handed to the local sample track
// in order; Flush discards anything not yet played, which is how the
// session implements barge-in and out-of-band notifications.
type TrackPublisher struct {
	frames chan AudioFrame
	track  *lksdk.LocalSampleTrack
	pub    *lksdk.LocalTrackPublication

	mu     sync.Mutex
	closed bool
}

// PublishTrack creates an Opus sample track, publishes it to the room as
// a microphone-source track (browser clients treat it as voice), and
// starts streaming frames written via WriteFrame.
func PublishTrack(room *lksdk.Room, name string) (*TrackPublisher, error) {
	track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType: webrtc.MimeTypeOpus,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create local sample track: %w", err)
	}

	p := &TrackPublisher{
		frames: make(chan AudioFrame, 100),
		track:  track,
	}

	if err := track.StartWrite(p, func() {
		slog.Debug("audio track write completed", slog.String("track", name))
	}); err != nil {
		return nil, fmt.Errorf("failed to start sample provider: %w", err)
	}

	pub, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   name,
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish audio track: %w", err)
	}
	p.pub = pub

	slog.Info("published assistant audio track", slog.String("sid", pub.SID()))
	return p, nil
}

// NextSample implements the lksdk sample provider contract.
func (p *TrackPublisher) NextSample(ctx context.Context) (webrtcmedia.Sample, error) {
	select {
	case <-ctx.Done():
		return webrtcmedia.Sample{}, ctx.Err()
	case frame, ok := <-p.frames:
		if !ok {
			return webrtcmedia.Sample{}, io.EOF
		}
		return webrtcmedia.Sample{
			Data:     frame.Data,
			Duration: frame.Duration(),
		}, nil
	}
}

// OnBind implements the lksdk sample provider contract.
func (p *TrackPublisher) OnBind() error { return nil }

// OnUnbind implements the lksdk sample provider contract.
func (p *TrackPublisher) OnUnbind() error { return nil }

// WriteFrame queues a frame for playback. It blocks while the playback
// buffer is full so synthesis cannot run unboundedly ahead of the room.
func (p *TrackPublisher) WriteFrame(ctx context.Context, frame AudioFrame) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("track publisher is closed")
	}
	p.mu.Unlock()

	select {
	case p.frames <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush drops all queued frames without playing them.
func (p *TrackPublisher) Flush() {
	for {
		select {
		case <-p.frames:
		default:
			return
		}
	}
}

// Close stops the publisher. Queued frames are discarded.
func (p *TrackPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.Flush()
	close(p.frames)
	return nil
}
