// Package audio assembles captured microphone frames into WAV payloads
// suitable for one-shot transcription.
package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

// FramesToWAV coerces a sequence of raw float32 LE mono frames into a single
// 16-bit PCM WAV payload. Frames whose length is not a multiple of four are
// skipped: they cannot be float32 samples and are treated as transport noise.
func FramesToWAV(frames [][]byte, sampleRate int) []byte {
	pcm := framesToPCM16(frames)
	return EncodeWAVPCM16LE(pcm, sampleRate)
}

// EncodeWAVPCM16LE wraps raw PCM16LE mono audio bytes in a WAV container.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		sampleRate = 48000
	}

	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36)+dataSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormat))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, byteRate)
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)
	buf.Write(pcm)

	return buf.Bytes()
}

func framesToPCM16(frames [][]byte) []byte {
	total := 0
	for _, f := range frames {
		if len(f) == 0 || len(f)%4 != 0 {
			continue
		}
		total += len(f) / 4
	}

	pcm := make([]byte, 0, total*2)
	var sample [2]byte
	for _, f := range frames {
		if len(f) == 0 || len(f)%4 != 0 {
			continue
		}
		for i := 0; i+4 <= len(f); i += 4 {
			v := math.Float32frombits(binary.LittleEndian.Uint32(f[i : i+4]))
			binary.LittleEndian.PutUint16(sample[:], uint16(float32ToInt16(v)))
			pcm = append(pcm, sample[0], sample[1])
		}
	}
	return pcm
}

func float32ToInt16(v float32) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	// Negative range is one step wider than positive in 16-bit PCM.
	if v < 0 {
		return int16(v * 0x8000)
	}
	return int16(v * 0x7fff)
}
