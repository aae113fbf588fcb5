package oto

import (
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
)

type Stream struct {
	Player *oto.Player
}

func newStream(player *oto.Player) *Stream {
	return &Stream{
		Player: player,
	}
}

func (s *Stream) Drain() error {
	for s.Player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	if err := s.Player.Err(); err != nil {
		return fmt.Errorf("an error occurred during playback: %w", err)
	}
	return nil
}

func (s *Stream) Close() error {
	s.Player.Pause()
	return s.Player.Close()
}
