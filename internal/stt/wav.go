package stt

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// encodeWAV serializes 16-bit mono PCM into a minimal canonical WAV
// container, the scoped temporary resource the STTEngine expects
// (spec §4.4).
func encodeWAV(samples []int16, sampleRate int) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[2*i] = byte(s)
		pcm[2*i+1] = byte(s >> 8)
	}

	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// decodeWAV reads back a canonical 16-bit mono WAV container into
// float32 samples in [-1, 1] plus its sample rate, for engines whose
// native input is float PCM rather than the raw container.
func decodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("not a canonical WAV container")
	}
	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))

	offset := 12
	var dataStart, dataLen int
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if id == "data" {
			dataStart, dataLen = body, size
			break
		}
		offset = body + size
	}
	if dataLen == 0 {
		return nil, 0, errors.New("wav container has no data chunk")
	}

	pcm := data[dataStart : dataStart+dataLen]
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		s := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return samples, sampleRate, nil
}
