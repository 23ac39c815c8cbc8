// Package audio captures microphone input and encodes it as WAV.
package audio

import (
	"bytes"
	"encoding/binary"
)

// Defaults for speech capture: 16 kHz mono 16-bit PCM.
const (
	DefaultSampleRate       = 16000
	DefaultChannels         = 1
	DefaultFramesPerBuffer  = 1024
	DefaultChunkSeconds     = 8
	DefaultSilenceThreshold = 300
	HealthyPeakLevel        = 1000
)

// EncodeWAV wraps 16-bit samples in a PCM RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	if channels < 1 {
		channels = 1
	}
	var buf bytes.Buffer

	dataSize := len(samples) * 2
	blockAlign := channels * 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

// PeakLevel returns the largest absolute sample value.
func PeakLevel(samples []int16) int {
	peak := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Duration returns the length of samples in seconds.
func Duration(samples []int16, sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return float64(len(samples)) / float64(sampleRate*channels)
}
