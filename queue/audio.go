package queue

import (
	"fmt"
	"log/slog"

	"github.com/zsiec/fabric/frame"
)

// AudioConfig describes how to size and shape an AudioFrameQueue's
// pre-allocated frames. Codec constrains which SampleFmt values are legal;
// NewAudio silently overrides SampleFmt for codecs with a fixed format,
// per spec.md S4: OPUS/AAC/MP3 force S16 interleaved, G.711 forces
// mono/8kHz/U8. PCM/PCMU accept the requested format if it is one of the
// interleaved or planar sets and fail setup for any other format.
type AudioConfig struct {
	Max        int
	Codec      frame.ACodecType
	Channels   int
	SampleRate int
	SampleFmt  frame.SampleFmt
}

// NewAudio constructs a FrameQueue whose frames are pre-allocated and
// shaped for the given codec. Setup failure (incompatible sample format
// that cannot be coerced, or an unsupported codec) returns a *SetupError.
func NewAudio(cfg AudioConfig, writerID, readerID int, log *slog.Logger) (*FrameQueue, error) {
	if cfg.Max == 0 {
		cfg.Max = frame.DefaultAudioFrames
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}

	switch cfg.Codec {
	case frame.ACodecOpus, frame.ACodecAAC, frame.ACodecMP3:
		cfg.SampleFmt = frame.SampleS16
	case frame.ACodecG711:
		cfg.Channels = 1
		cfg.SampleRate = 8000
		cfg.SampleFmt = frame.SampleU8
	case frame.ACodecPCM, frame.ACodecPCMU:
		if !isInterleaved(cfg.SampleFmt) && !isPlanar(cfg.SampleFmt) {
			return nil, &SetupError{Reason: fmt.Sprintf("incompatible sample format %v for PCM/PCMU", cfg.SampleFmt)}
		}
	default:
		return nil, &SetupError{Reason: fmt.Sprintf("unsupported audio codec %v", cfg.Codec)}
	}

	q, err := New(cfg.Max, writerID, readerID, log)
	if err != nil {
		return nil, err
	}

	samples := frame.MaxSamples(cfg.SampleRate)
	planar := isPlanar(cfg.SampleFmt)
	for i := range q.frames {
		q.frames[i].Kind = frame.KindAudio
		shape := frame.AudioShape{
			Channels:   cfg.Channels,
			SampleRate: cfg.SampleRate,
			SampleFmt:  cfg.SampleFmt,
			Samples:    samples,
			Codec:      cfg.Codec,
		}
		if planar {
			shape.Planes = make([][]byte, cfg.Channels)
			for c := range shape.Planes {
				shape.Planes[c] = make([]byte, samples*frame.SampleFmtBytes(cfg.SampleFmt))
			}
		} else {
			shape.Data = make([]byte, samples*cfg.Channels*frame.SampleFmtBytes(cfg.SampleFmt))
		}
		q.frames[i].Audio = shape
	}
	return q, nil
}

func isInterleaved(f frame.SampleFmt) bool {
	switch f {
	case frame.SampleU8, frame.SampleS16, frame.SampleFLT:
		return true
	default:
		return false
	}
}

func isPlanar(f frame.SampleFmt) bool {
	switch f {
	case frame.SampleU8P, frame.SampleS16P, frame.SampleFLTP:
		return true
	default:
		return false
	}
}
