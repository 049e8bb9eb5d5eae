package local

import (
	"context"
	"encoding/binary"
	"math"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// TextAudioFormat marks audio whose payload is the UTF-8 transcript itself.
const TextAudioFormat = "text"

// STTConfig configures STT.
type STTConfig struct {
	Transcript string   `hcl:"transcript,optional"`
	Remain     hcl.Body `hcl:",remain"`
}

// STT returns the payload of text-format audio, or a fixed transcript.
type STT struct{ transcript string }

var _ registry.STT = (*STT)(nil)

func NewSTT(cfg STTConfig) *STT { return &STT{transcript: cfg.Transcript} }

// Transcribe implements registry.STT.
func (s *STT) Transcribe(ctx context.Context, audio value.Audio) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.EqualFold(audio.Format(), TextAudioFormat) {
		return strings.TrimSpace(string(audio.Data())), nil
	}
	return s.transcript, nil
}

// TTSConfig configures TTS.
type TTSConfig struct {
	SampleRate int      `hcl:"sample_rate,optional"`
	CharMillis int      `hcl:"char_ms,optional"`
	Remain     hcl.Body `hcl:",remain"`
}

// TTS renders a sine tone whose length follows the text and whose pitch
// follows the voice name.
type TTS struct {
	sampleRate int
	charMillis int
}

var _ registry.TTS = (*TTS)(nil)

func NewTTS(cfg TTSConfig) *TTS {
	t := &TTS{sampleRate: cfg.SampleRate, charMillis: cfg.CharMillis}
	if t.sampleRate <= 0 {
		t.sampleRate = 16000
	}
	if t.charMillis <= 0 {
		t.charMillis = 10
	}
	return t
}

// Synthesize implements registry.TTS. Output is 16-bit mono PCM.
func (t *TTS) Synthesize(ctx context.Context, text, voice string) (value.Audio, error) {
	if err := ctx.Err(); err != nil {
		return value.Audio{}, err
	}
	n := len([]rune(text)) * t.charMillis * t.sampleRate / 1000
	freq := 220.0 + float64(fnv32(voice)%440)
	data := make([]byte, 2*n)
	for i := range n {
		s := int16(math.Sin(2*math.Pi*freq*float64(i)/float64(t.sampleRate)) * 8000)
		binary.LittleEndian.PutUint16(data[2*i:], uint16(s))
	}
	return value.NewAudio(data, t.sampleRate, "pcm_s16le"), nil
}
