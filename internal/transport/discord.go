package transport

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hraban/opus"

	"github.com/meeting-voice-lab/internal/logging"
)

const (
	sampleRate      = 48000
	frameSamples    = 960 // 20ms at 48kHz, per channel
	maxOpusFrameLen = 4000
)

// DiscordTransport plays synthesized audio into a Discord voice connection.
// Send blocks until the audio has been handed to the connection frame by
// frame, so the caller's ordering guarantees carry through to playback.
type DiscordTransport struct {
	mu     sync.Mutex
	vc     *discordgo.VoiceConnection
	enc    *opus.Encoder
	cancel chan struct{}
}

func NewDiscordTransport(vc *discordgo.VoiceConnection) (*DiscordTransport, error) {
	enc, err := opus.NewEncoder(sampleRate, 2, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	return &DiscordTransport{
		vc:     vc,
		enc:    enc,
		cancel: make(chan struct{}),
	}, nil
}

// IsActive reports whether the voice connection is ready to receive audio.
func (d *DiscordTransport) IsActive() bool {
	d.mu.Lock()
	vc := d.vc
	d.mu.Unlock()
	return vc != nil && vc.Ready
}

// Send decodes a 16-bit PCM WAV payload, encodes it to opus frames and
// streams them to the voice connection.
func (d *DiscordTransport) Send(audio []byte) error {
	d.mu.Lock()
	vc := d.vc
	cancel := d.cancel
	d.mu.Unlock()
	if vc == nil || !vc.Ready {
		return fmt.Errorf("voice connection not ready")
	}

	pcm, channels, err := parseWAV(audio)
	if err != nil {
		return err
	}
	stereo := toStereo(pcm, channels)

	if err := vc.Speaking(true); err != nil {
		logging.Debugw("speaking(true) failed", "err", err)
	}
	defer func() {
		if err := vc.Speaking(false); err != nil {
			logging.Debugw("speaking(false) failed", "err", err)
		}
	}()

	buf := make([]byte, maxOpusFrameLen)
	frame := frameSamples * 2
	for off := 0; off < len(stereo); off += frame {
		select {
		case <-cancel:
			return nil
		default:
		}
		end := off + frame
		chunk := stereo[off:min(end, len(stereo))]
		if len(chunk) < frame {
			padded := make([]int16, frame)
			copy(padded, chunk)
			chunk = padded
		}
		n, err := d.enc.Encode(chunk, buf)
		if err != nil {
			return fmt.Errorf("opus encode: %w", err)
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		select {
		case vc.OpusSend <- pkt:
		case <-cancel:
			return nil
		case <-time.After(5 * time.Second):
			return fmt.Errorf("opus send timed out")
		}
	}
	return nil
}

// CancelPlayback drops any frames Send has not yet written.
func (d *DiscordTransport) CancelPlayback() error {
	d.mu.Lock()
	close(d.cancel)
	d.cancel = make(chan struct{})
	d.mu.Unlock()
	return nil
}

// Close detaches from the voice connection.
func (d *DiscordTransport) Close() {
	d.mu.Lock()
	d.vc = nil
	d.mu.Unlock()
}

// parseWAV extracts 16-bit little-endian PCM samples from a RIFF WAV payload.
// Raw PCM without a RIFF header is accepted as 48kHz mono.
func parseWAV(data []byte) ([]int16, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		if len(data)%2 != 0 {
			return nil, 0, fmt.Errorf("odd-length pcm payload")
		}
		return bytesToSamples(data), 1, nil
	}
	channels := 1
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size >= 16 {
				format := binary.LittleEndian.Uint16(data[body : body+2])
				if format != 1 {
					return nil, 0, fmt.Errorf("unsupported wav format %d", format)
				}
				channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
				if channels != 1 && channels != 2 {
					return nil, 0, fmt.Errorf("unsupported wav channel count %d", channels)
				}
				bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
				if bits != 16 {
					return nil, 0, fmt.Errorf("unsupported wav bit depth %d", bits)
				}
			}
		case "data":
			return bytesToSamples(data[body : body+size-size%2]), channels, nil
		}
		off = body + size
		if size%2 == 1 {
			off++
		}
	}
	return nil, 0, fmt.Errorf("wav data chunk not found")
}

func bytesToSamples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return out
}

func toStereo(pcm []int16, channels int) []int16 {
	if channels == 2 {
		return pcm
	}
	out := make([]int16, len(pcm)*2)
	for i, s := range pcm {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}
