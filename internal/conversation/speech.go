package conversation

import (
	"context"
	"errors"
)

// ErrSpeechUnsupported is returned by speech capabilities on platforms without voice support.
var ErrSpeechUnsupported = errors.New("speech is not supported on this platform")

// Speech abstracts platform voice capabilities so the conversation core never depends on
// media APIs directly. Server deployments use the unsupported variant.
type Speech interface {
	StartListening(ctx context.Context) error
	StopListening() error
	Speak(ctx context.Context, text string) error
	Stop() error
}

// UnsupportedSpeech is the no-op Speech variant for platforms without voice support.
type UnsupportedSpeech struct{}

// StartListening implements Speech.
func (UnsupportedSpeech) StartListening(context.Context) error { return ErrSpeechUnsupported }

// StopListening implements Speech.
func (UnsupportedSpeech) StopListening() error { return nil }

// Speak implements Speech.
func (UnsupportedSpeech) Speak(context.Context, string) error { return ErrSpeechUnsupported }

// Stop implements Speech.
func (UnsupportedSpeech) Stop() error { return nil }
