// Package frame defines the typed payload and metadata that flows through
// the fabric: one Frame per video picture or audio chunk, sized and shaped
// at queue construction time and reused for the lifetime of its queue.
package frame

// VCodecType identifies the video codec a Frame's payload is encoded with.
type VCodecType int

const (
	VCodecNone VCodecType = iota
	VCodecH264
	VCodecH265
	VCodecVP8
	VCodecRaw
)

func (c VCodecType) String() string {
	switch c {
	case VCodecH264:
		return "h264"
	case VCodecH265:
		return "h265"
	case VCodecVP8:
		return "vp8"
	case VCodecRaw:
		return "raw"
	default:
		return "none"
	}
}

// PixType identifies the pixel layout of a raw video Frame. It is only
// meaningful when VCodecType is VCodecRaw.
type PixType int

const (
	PNone PixType = iota
	PixYUV420P
	PixYUV422P
	PixYUV444P
	PixRGB24
	PixRGBA
)

// ACodecType identifies the audio codec a Frame's payload is encoded with.
type ACodecType int

const (
	ACodecNone ACodecType = iota
	ACodecOpus
	ACodecAAC
	ACodecMP3
	ACodecPCM
	ACodecPCMU
	ACodecG711
)

func (c ACodecType) String() string {
	switch c {
	case ACodecOpus:
		return "opus"
	case ACodecAAC:
		return "aac"
	case ACodecMP3:
		return "mp3"
	case ACodecPCM:
		return "pcm"
	case ACodecPCMU:
		return "pcmu"
	case ACodecG711:
		return "g711"
	default:
		return "none"
	}
}

// SampleFmt identifies the in-memory layout of audio samples.
type SampleFmt int

const (
	SampleFmtNone SampleFmt = iota
	SampleU8
	SampleS16
	SampleFLT
	SampleU8P
	SampleS16P
	SampleFLTP
)

// Kind tags which shape a Frame's payload carries. The core never needs to
// dynamic_cast to recover the concrete shape: callers switch on Kind.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
)

// VideoShape describes a video Frame's payload and format.
type VideoShape struct {
	Data        []byte
	Length      int
	Width       int
	Height      int
	PixelFormat PixType
	Codec       VCodecType
}

// AudioShape describes an audio Frame's payload and format. Planar sample
// formats (U8P/S16P/FLTP) use Planes; interleaved formats use Data.
type AudioShape struct {
	Data       []byte
	Planes     [][]byte
	Length     int
	Channels   int
	SampleRate int
	SampleFmt  SampleFmt
	Samples    int
	Codec      ACodecType
}

// Frame is one unit of media exchanged through the fabric: a fixed-capacity
// payload slot plus the metadata a consumer needs to place it in a stream.
// Frames are pre-allocated by a FrameQueue at construction and reused for
// the queue's lifetime; a Frame's Video/Audio field is never reallocated
// across calls, only overwritten in place by the producer holding the slot.
type Frame struct {
	Kind Kind

	Video VideoShape
	Audio AudioShape

	PresentationTime int64 // microseconds
	OriginTime       int64 // microseconds
	SequenceNumber   uint64
	Consumed         bool
}

// Reset clears metadata so a reused slot does not leak the previous
// occupant's timestamps into a frame the producer forgets to fully set.
// Payload buffers are left untouched: the producer overwrites Length (and
// Data/Planes contents) itself, and a queue never reallocates them.
func (f *Frame) Reset() {
	f.PresentationTime = 0
	f.OriginTime = 0
	f.SequenceNumber = 0
	f.Consumed = false
}
