package refanalyzer

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeTestWAV(t *testing.T, sampleRate int, channels int, samples [][]int16) []byte {
	t.Helper()
	numFrames := len(samples)
	bitsPerSample := 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := numFrames * blockAlign

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for _, frame := range samples {
		for _, s := range frame {
			binary.Write(&buf, binary.LittleEndian, s)
		}
	}
	return buf.Bytes()
}

func TestDecodeWAV_MonoRoundTrip(t *testing.T) {
	raw := writeTestWAV(t, 22050, 1, [][]int16{{16384}, {-16384}, {0}})
	buf, err := decodeWAV(bytes.NewReader(raw))
	assert.NoError(t, err)
	assert.Equal(t, 22050, buf.SampleRate)
	assert.Equal(t, 1, buf.NumberOfChannels)
	assert.Equal(t, 3, buf.Length)
	assert.InDelta(t, 0.5, buf.Channels[0][0], 0.001)
	assert.InDelta(t, -0.5, buf.Channels[0][1], 0.001)
	assert.InDelta(t, 0.0, buf.Channels[0][2], 0.001)
}

func TestDecodeWAV_StereoChannelsSeparated(t *testing.T) {
	raw := writeTestWAV(t, 44100, 2, [][]int16{{1000, -1000}, {2000, -2000}})
	buf, err := decodeWAV(bytes.NewReader(raw))
	assert.NoError(t, err)
	assert.Equal(t, 2, buf.NumberOfChannels)
	assert.Greater(t, buf.Channels[0][0], 0.0)
	assert.Less(t, buf.Channels[1][0], 0.0)
}

func TestDecodeWAV_RejectsNonRIFF(t *testing.T) {
	_, err := decodeWAV(bytes.NewReader([]byte("not a wav file at all, just text")))
	assert.Error(t, err)
}
