package node

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// STTConfig configures a speech-to-text node.
type STTConfig struct {
	Component string   `hcl:"component,optional"`
	Remain    hcl.Body `hcl:",remain"`
}

func (*STTConfig) Kind() Kind { return KindSTT }

func (c *STTConfig) build(env *buildEnv) (processor, error) {
	stt, err := resolve[registry.STT](env, "component", "stt", c.Component, registry.CapSTT)
	if err != nil {
		return nil, err
	}
	return &sttProcessor{stt: stt}, nil
}

type sttProcessor struct {
	stt registry.STT
}

func (p *sttProcessor) process(ic *invocation.Context, items []value.Value) (value.Value, error) {
	var audio value.Audio
	found := false
	for _, item := range items {
		if a, ok := item.(value.Audio); ok {
			audio, found = a, true
			break
		}
	}
	if !found {
		return nil, missingInput(value.KindAudio)
	}
	text, err := p.stt.Transcribe(ic.Context(), audio)
	if err != nil {
		return nil, upstream("transcribe", err)
	}
	return value.NewText(text), nil
}

// TTSConfig configures a text-to-speech node. Voice is required.
type TTSConfig struct {
	Component string   `hcl:"component,optional"`
	Voice     string   `hcl:"voice,optional"`
	Remain    hcl.Body `hcl:",remain"`
}

func (*TTSConfig) Kind() Kind { return KindTTS }

func (c *TTSConfig) build(env *buildEnv) (processor, error) {
	if strings.TrimSpace(c.Voice) == "" {
		return nil, configErr("voice", "voice is required")
	}
	tts, err := resolve[registry.TTS](env, "component", "tts", c.Component, registry.CapTTS)
	if err != nil {
		return nil, err
	}
	return &ttsProcessor{tts: tts, voice: c.Voice}, nil
}

type ttsProcessor struct {
	tts   registry.TTS
	voice string
}

func (p *ttsProcessor) process(ic *invocation.Context, items []value.Value) (value.Value, error) {
	text := strings.TrimSpace(strings.Join(texts(items), " "))
	if text == "" {
		return nil, missingInput(value.KindText)
	}
	audio, err := p.tts.Synthesize(ic.Context(), text, p.voice)
	if err != nil {
		value.Discard(audio)
		return nil, upstream("synthesize", err)
	}
	return audio, nil
}
