package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"daystart/internal/config"
	"daystart/internal/logging"
	"daystart/internal/services"
)

// narrationWPM is the pace used to estimate duration when the provider does
// not report one.
const narrationWPM = 150.0

// Artifact describes a synthesized briefing written to disk.
type Artifact struct {
	Path            string
	DurationSeconds float64
	Provider        string
}

// Synthesizer drives narration synthesis with provider fallback and writes
// the resulting artifact.
type Synthesizer struct {
	primary  Provider
	fallback Provider
	voices   map[string]string
	audioDir string
	logger   *slog.Logger
}

// NewSynthesizer constructs the synthesizer from configuration. The fallback
// provider is optional.
func NewSynthesizer(cfg config.TTS, audioDir string, logger *slog.Logger) (*Synthesizer, error) {
	primary, err := NewProvider(cfg.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary provider: %w", err)
	}
	var fallback Provider
	if cfg.Fallback.Name != "" {
		fallback, err = NewProvider(cfg.Fallback)
		if err != nil {
			return nil, fmt.Errorf("fallback provider: %w", err)
		}
	}
	return NewSynthesizerWithProviders(primary, fallback, cfg.Voices, audioDir, logger), nil
}

// NewSynthesizerWithProviders wires explicit providers; tests use this to
// inject stubs.
func NewSynthesizerWithProviders(primary, fallback Provider, voices map[string]string, audioDir string, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		primary:  primary,
		fallback: fallback,
		voices:   voices,
		audioDir: audioDir,
		logger:   logging.NewComponentLogger(logger, "speech"),
	}
}

// Synthesize narrates the text and writes <audio_dir>/<publicID>.mp3. The
// primary provider gets two tries, then the fallback one; both failing
// surfaces the last error.
func (s *Synthesizer) Synthesize(ctx context.Context, publicID, text, voice string) (Artifact, error) {
	if strings.TrimSpace(text) == "" {
		return Artifact{}, services.Wrap(services.ErrPermanent, "speech", "synthesize", "empty script", nil)
	}

	providerVoice := voice
	if mapped, ok := s.voices[voice]; ok {
		providerVoice = mapped
	}

	audio, provider, err := s.synthesizeWithFallback(ctx, text, providerVoice)
	if err != nil {
		return Artifact{}, err
	}

	if err := os.MkdirAll(s.audioDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create audio directory: %w", err)
	}
	path := filepath.Join(s.audioDir, publicID+".mp3")
	if err := os.WriteFile(path, audio.Data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}

	duration := audio.DurationSeconds
	if duration <= 0 {
		duration = float64(len(strings.Fields(text))) / narrationWPM * 60
	}
	return Artifact{Path: path, DurationSeconds: duration, Provider: provider}, nil
}

func (s *Synthesizer) synthesizeWithFallback(ctx context.Context, text, voice string) (Audio, string, error) {
	audio, err := s.primary.Synthesize(ctx, text, voice)
	if err == nil {
		return audio, s.primary.Name(), nil
	}
	firstErr := err

	// One retry against the primary for transient blips before switching.
	if services.IsTransient(err) && ctx.Err() == nil {
		if audio, err = s.primary.Synthesize(ctx, text, voice); err == nil {
			return audio, s.primary.Name(), nil
		}
	}

	if s.fallback == nil || ctx.Err() != nil {
		return Audio{}, "", firstErr
	}

	s.logger.Warn("primary synthesis failed, using fallback",
		logging.String(logging.FieldProvider, s.primary.Name()),
		logging.Error(err))

	audio, err = s.fallback.Synthesize(ctx, text, voice)
	if err != nil {
		return Audio{}, "", services.Wrap(services.ErrTransient, "speech", "synthesize",
			fmt.Sprintf("all providers failed (primary: %v)", firstErr), err)
	}
	return audio, s.fallback.Name(), nil
}
