package rtc

import (
	"context"
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// ReadTrack pumps a subscribed remote audio track into a frame channel.
// Packet payloads pass through unmodified; decoding is the consumer's
// concern. The channel closes when the track ends or ctx is cancelled.
func ReadTrack(ctx context.Context, track *webrtc.TrackRemote) <-chan AudioFrame {
	out := make(chan AudioFrame, 100)

	go func() {
		defer close(out)

		for {
			if ctx.Err() != nil {
				return
			}

			pkt, _, err := track.ReadRTP()
			if err != nil {
				slog.Debug("remote track ended", slog.String("error", err.Error()))
				return
			}
			if len(pkt.Payload) == 0 {
				continue
			}

			frame := AudioFrame{
				Data:              pkt.Payload,
				SampleRate:        48000,
				SamplesPerChannel: 480,
				NumChannels:       1,
			}

			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
