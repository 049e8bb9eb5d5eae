// Package openaiaudio provides speech-to-text, text-to-speech and text
// embeddings through the OpenAI audio and embeddings endpoints.
package openaiaudio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
	openai "github.com/sashabaranov/go-openai"
)

// Provider is the component provider name.
const Provider = "openai_audio"

// SpeechSampleRate is the rate of the raw PCM returned by the speech endpoint.
const SpeechSampleRate = 24000

// Config is the component block body.
type Config struct {
	APIKey         string   `hcl:"api_key,optional"`
	BaseURL        string   `hcl:"base_url,optional"`
	STTModel       string   `hcl:"stt_model,optional"`
	TTSModel       string   `hcl:"tts_model,optional"`
	EmbeddingModel string   `hcl:"embedding_model,optional"`
	Language       string   `hcl:"language,optional"`
	Remain         hcl.Body `hcl:",remain"`
}

// Client implements registry.STT, registry.TTS and registry.TextEmbedder.
type Client struct {
	client *openai.Client
	cfg    Config
}

var (
	_ registry.STT          = (*Client)(nil)
	_ registry.TTS          = (*Client)(nil)
	_ registry.TextEmbedder = (*Client)(nil)
)

// New creates a client with defaults for unset models.
func New(cfg Config) *Client {
	if cfg.STTModel == "" {
		cfg.STTModel = openai.Whisper1
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = string(openai.TTSModel1)
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(openai.SmallEmbedding3)
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{client: openai.NewClientWithConfig(oc), cfg: cfg}
}

// Module registers the openai_audio provider.
type Module struct{}

// Register implements registry.Module.
func (Module) Register(r *registry.Registry) {
	r.RegisterProvider(Provider, func(ctx context.Context, id string, body hcl.Body, evalCtx *hcl.EvalContext) (any, error) {
		var cfg Config
		if diags := gohcl.DecodeBody(body, evalCtx, &cfg); diags.HasErrors() {
			return nil, diags
		}
		ctxlog.FromContext(ctx).Debug("Creating OpenAI audio client.", "id", id, "stt_model", cfg.STTModel, "tts_model", cfg.TTSModel)
		return New(cfg), nil
	})
}

// Transcribe implements registry.STT. Raw PCM is wrapped in a WAV container
// since the endpoint only accepts encoded files.
func (c *Client) Transcribe(ctx context.Context, audio value.Audio) (string, error) {
	data, ext := audio.Data(), audioExt(audio.Format())
	if ext == "pcm" {
		data, ext = wavFromPCM(data, audio.SampleRate()), "wav"
	}
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.STTModel,
		FilePath: "audio." + ext,
		Reader:   bytes.NewReader(data),
		Language: c.cfg.Language,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription error: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Synthesize implements registry.TTS. The result is 24kHz 16-bit mono PCM.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (value.Audio, error) {
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.cfg.TTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return value.Audio{}, fmt.Errorf("openai speech error: %w", err)
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return value.Audio{}, fmt.Errorf("reading speech response: %w", err)
	}
	return value.NewAudio(data, SpeechSampleRate, "pcm_s16le"), nil
}

// Embed implements registry.TextEmbedder.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings error: %w", err)
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("openai embeddings: missing vector for input %d", i)
		}
	}
	return out, nil
}

// audioExt maps a value.Audio format to a file extension.
func audioExt(format string) string {
	switch f := strings.ToLower(format); {
	case f == "" || strings.HasPrefix(f, "pcm"):
		return "pcm"
	default:
		return f
	}
}
