// Package audio converts between the little-endian 16-bit PCM wire
// format and the normalized float32 samples the pipeline works on.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"time"
)

var ErrOddPCMLength = errors.New("pcm16 payload has odd length")

// DecodePCM16 turns little-endian signed 16-bit samples into float32
// in [-1, 1].
func DecodePCM16(raw []byte) ([]float32, error) {
	if len(raw)%2 != 0 {
		return nil, ErrOddPCMLength
	}
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	return samples, nil
}

// EncodePCM16 is the inverse of DecodePCM16. Samples outside [-1, 1]
// are clamped, not wrapped.
func EncodePCM16(samples []float32) []byte {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(v))
	}
	return raw
}

// Duration of a mono sample buffer at rate Hz.
func Duration(sampleCount, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(sampleCount) / float64(rate) * float64(time.Second))
}

// RMS is the root-mean-square energy of the buffer, used as a cheap
// silence gate ahead of ASR.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
