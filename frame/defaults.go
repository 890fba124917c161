package frame

// Queue and payload sizing defaults. Named after the constants spec.md's
// external control surface expects to see (queue capacities, default
// picture size, per-codec payload bounds); the core never chooses these on
// its own, but a VideoFrameQueue/AudioFrameQueue constructor falls back to
// them when a caller leaves a field zero.
const (
	DefaultVideoFrames = 10
	DefaultAudioFrames = 30

	DefaultWidth  = 1920
	DefaultHeight = 1080

	// MaxH264OR5NALSize bounds a single Annex-B NAL unit for H.264/H.265
	// payloads; VideoFrameQueue sizes H264/H265 frame buffers to this.
	MaxH264OR5NALSize = 500_000

	// LengthVP8 bounds a single VP8 frame payload.
	LengthVP8 = 400_000

	// DefaultBufferSize sizes audio circular buffers when a filter needs
	// one beyond the FrameQueue itself (e.g. a resampler's scratch space).
	DefaultBufferSize = 65536
)

// MaxSamples returns the number of PCM samples an AudioFrameQueue should
// size its buffers for at the given sample rate, assuming a worst-case
// 120ms frame (covers AAC's largest common frame size at low sample rates
// and leaves headroom for PCM chunks sized to match).
func MaxSamples(sampleRate int) int {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return sampleRate / 1000 * 120
}

// SampleFmtBytes returns the byte width of one sample in the given format.
func SampleFmtBytes(f SampleFmt) int {
	switch f {
	case SampleU8, SampleU8P:
		return 1
	case SampleS16, SampleS16P:
		return 2
	case SampleFLT, SampleFLTP:
		return 4
	default:
		return 2
	}
}
