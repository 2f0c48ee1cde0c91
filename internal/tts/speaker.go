package tts

import (
	"context"

	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/domain"
)

// Speaker speaks phrases out loud: render (or hit the cache), then play.
type Speaker struct {
	synth  *Synthesizer
	player domain.SoundPlayer
	log    *zap.SugaredLogger
}

// NewSpeaker creates a Speaker.
func NewSpeaker(synth *Synthesizer, player domain.SoundPlayer, log *zap.SugaredLogger) *Speaker {
	return &Speaker{synth: synth, player: player, log: log}
}

// Say renders and plays a phrase. With block set it returns after the
// phrase has been spoken.
func (s *Speaker) Say(ctx context.Context, category, text string, block bool) error {
	id, err := s.synth.Prepare(ctx, category, text)
	if err != nil {
		return err
	}
	if !s.player.Play(id, block) {
		return domain.ErrSoundNotFound
	}
	return nil
}
