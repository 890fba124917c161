package queue

import (
	"fmt"
	"log/slog"

	"github.com/zsiec/fabric/frame"
)

// VideoConfig describes how to size and shape a VideoFrameQueue's
// pre-allocated frames. Codec determines the per-frame payload capacity;
// Width/Height/PixelFormat matter only for VCodecRaw.
type VideoConfig struct {
	Max         int
	Codec       frame.VCodecType
	PixelFormat frame.PixType
	Width       int
	Height      int
}

// NewVideo constructs a FrameQueue whose frames are pre-allocated and
// shaped for the given codec, grounded in spec.md §4.1's VideoFrameQueue
// subtype: H.264/H.265 size to MaxH264OR5NALSize, VP8 sizes to LengthVP8,
// and RAW requires a pixel format and sizes to Width*Height planes.
// Setup failure (unsupported codec, missing pixel format) returns a
// *SetupError and no queue, which the caller (A.allocQueue) must surface
// as a wiring error rather than retry.
func NewVideo(cfg VideoConfig, writerID, readerID int, log *slog.Logger) (*FrameQueue, error) {
	if cfg.Max == 0 {
		cfg.Max = frame.DefaultVideoFrames
	}
	var capacity int
	switch cfg.Codec {
	case frame.VCodecH264, frame.VCodecH265:
		capacity = frame.MaxH264OR5NALSize
	case frame.VCodecVP8:
		capacity = frame.LengthVP8
	case frame.VCodecRaw:
		if cfg.PixelFormat == frame.PNone {
			return nil, &SetupError{Reason: "raw video queue requires a pixel format"}
		}
		if cfg.Width == 0 {
			cfg.Width = frame.DefaultWidth
		}
		if cfg.Height == 0 {
			cfg.Height = frame.DefaultHeight
		}
		capacity = rawVideoSize(cfg.Width, cfg.Height, cfg.PixelFormat)
	default:
		return nil, &SetupError{Reason: fmt.Sprintf("unsupported video codec %v", cfg.Codec)}
	}

	q, err := New(cfg.Max, writerID, readerID, log)
	if err != nil {
		return nil, err
	}
	for i := range q.frames {
		q.frames[i].Kind = frame.KindVideo
		q.frames[i].Video = frame.VideoShape{
			Data:        make([]byte, capacity),
			Width:       cfg.Width,
			Height:      cfg.Height,
			PixelFormat: cfg.PixelFormat,
			Codec:       cfg.Codec,
		}
	}
	return q, nil
}

// rawVideoSize computes the byte size of one raw frame for the given
// dimensions and pixel layout, using the standard chroma-subsampling
// ratios for planar YUV formats.
func rawVideoSize(w, h int, p frame.PixType) int {
	switch p {
	case frame.PixYUV420P:
		return w*h + 2*((w+1)/2)*((h+1)/2)
	case frame.PixYUV422P:
		return w*h + 2*((w+1)/2)*h
	case frame.PixYUV444P:
		return w * h * 3
	case frame.PixRGB24:
		return w * h * 3
	case frame.PixRGBA:
		return w * h * 4
	default:
		return w * h * 4
	}
}
