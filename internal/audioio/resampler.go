package audioio

// Resampler performs linear-interpolation sample-rate conversion
// between the device's capture rate and whatever rate a given engine
// (wake-word spotter, VAD, STT) expects. Good enough for voice; no
// claim to audiophile quality.
type Resampler struct {
	ratio      float64
	lastSample float32
}

// NewResampler builds a converter from fromRate to toRate, both in Hz.
func NewResampler(fromRate, toRate int) *Resampler {
	return &Resampler{ratio: float64(toRate) / float64(fromRate)}
}

// Resample converts a block of float32 samples in [-1, 1]. Each chunk
// is interpolated on its own: samples of the previous chunk do not
// affect the output.
func (r *Resampler) Resample(input []float32) []float32 {
	if r.ratio == 1.0 || len(input) == 0 {
		return input
	}

	outputLen := int(float64(len(input)) * r.ratio)
	output := make([]float32, outputLen)

	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) / r.ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		sample1 := r.lastSample
		if srcIdx < len(input) {
			sample1 = input[srcIdx]
		}

		sample2 := sample1
		if srcIdx+1 < len(input) {
			sample2 = input[srcIdx+1]
		} else if srcIdx < len(input) {
			sample2 = input[len(input)-1]
		}

		output[i] = sample1 + (sample2-sample1)*frac
	}

	r.lastSample = input[len(input)-1]
	return output
}

// Int16ToFloat32 converts PCM16 samples to the [-1, 1] float32 domain
// the onnx engines and silero VAD expect.
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Float32ToInt16 converts back to PCM16, clipping to the valid range.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32768.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
