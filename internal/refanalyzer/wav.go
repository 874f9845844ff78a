package refanalyzer

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	chartgen "github.com/basswave/chartgen"
)

// LoadWAV reads a PCM WAVE file into a chartgen.AudioBuffer. It supports
// 16-bit and 32-bit integer PCM and 32-bit float samples, the common
// subset a local dev loop needs; compressed formats are out of scope,
// since decoding is treated as an external collaborator's job and this
// loader exists only so the module is runnable without one.
func LoadWAV(path string) (chartgen.AudioBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return chartgen.AudioBuffer{}, fmt.Errorf("refanalyzer: open wav: %w", err)
	}
	defer f.Close()
	return decodeWAV(f)
}

type waveFormat struct {
	audioFormat   uint16
	numChannels   uint16
	sampleRate    uint32
	bitsPerSample uint16
}

func decodeWAV(r io.Reader) (chartgen.AudioBuffer, error) {
	var riffHeader [12]byte
	if _, err := io.ReadFull(r, riffHeader[:]); err != nil {
		return chartgen.AudioBuffer{}, fmt.Errorf("refanalyzer: read riff header: %w", err)
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return chartgen.AudioBuffer{}, fmt.Errorf("refanalyzer: not a RIFF/WAVE file")
	}

	var format waveFormat
	var haveFormat bool

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return chartgen.AudioBuffer{}, fmt.Errorf("refanalyzer: read chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return chartgen.AudioBuffer{}, fmt.Errorf("refanalyzer: read fmt chunk: %w", err)
			}
			format = waveFormat{
				audioFormat:   binary.LittleEndian.Uint16(body[0:2]),
				numChannels:   binary.LittleEndian.Uint16(body[2:4]),
				sampleRate:    binary.LittleEndian.Uint32(body[4:8]),
				bitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return chartgen.AudioBuffer{}, fmt.Errorf("refanalyzer: data chunk before fmt chunk")
			}
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return chartgen.AudioBuffer{}, fmt.Errorf("refanalyzer: read data chunk: %w", err)
			}
			return samplesToBuffer(body, format)
		default:
			if _, err := io.CopyN(io.Discard, r, int64(chunkSize)); err != nil {
				return chartgen.AudioBuffer{}, fmt.Errorf("refanalyzer: skip chunk %q: %w", chunkID, err)
			}
		}
		if chunkSize%2 == 1 {
			io.CopyN(io.Discard, r, 1)
		}
	}
	return chartgen.AudioBuffer{}, fmt.Errorf("refanalyzer: no data chunk found")
}

const (
	waveFormatPCM   = 1
	waveFormatFloat = 3
)

func samplesToBuffer(data []byte, format waveFormat) (chartgen.AudioBuffer, error) {
	channels := int(format.numChannels)
	if channels == 0 {
		return chartgen.AudioBuffer{}, fmt.Errorf("refanalyzer: zero channels in wav format")
	}
	bytesPerSample := int(format.bitsPerSample) / 8
	if bytesPerSample == 0 {
		return chartgen.AudioBuffer{}, fmt.Errorf("refanalyzer: zero bits-per-sample in wav format")
	}
	frameSize := bytesPerSample * channels
	numFrames := len(data) / frameSize

	chs := make([][]float64, channels)
	for c := range chs {
		chs[c] = make([]float64, numFrames)
	}

	for frame := 0; frame < numFrames; frame++ {
		base := frame * frameSize
		for c := 0; c < channels; c++ {
			off := base + c*bytesPerSample
			sample, err := decodeSample(data[off:off+bytesPerSample], format)
			if err != nil {
				return chartgen.AudioBuffer{}, err
			}
			chs[c][frame] = sample
		}
	}

	return chartgen.AudioBuffer{
		SampleRate:       int(format.sampleRate),
		Length:           numFrames,
		NumberOfChannels: channels,
		Channels:         chs,
	}, nil
}

func decodeSample(b []byte, format waveFormat) (float64, error) {
	switch {
	case format.audioFormat == waveFormatFloat && format.bitsPerSample == 32:
		bits := binary.LittleEndian.Uint32(b)
		return float64(math.Float32frombits(bits)), nil
	case format.audioFormat == waveFormatPCM && format.bitsPerSample == 16:
		v := int16(binary.LittleEndian.Uint16(b))
		return float64(v) / 32768.0, nil
	case format.audioFormat == waveFormatPCM && format.bitsPerSample == 32:
		v := int32(binary.LittleEndian.Uint32(b))
		return float64(v) / 2147483648.0, nil
	case format.audioFormat == waveFormatPCM && format.bitsPerSample == 8:
		return (float64(b[0]) - 128) / 128.0, nil
	default:
		return 0, fmt.Errorf("refanalyzer: unsupported wav format %d/%d-bit", format.audioFormat, format.bitsPerSample)
	}
}
