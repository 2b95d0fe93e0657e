package player

import "errors"

// ErrorKind classifies playback failures surfaced through Events.OnError.
type ErrorKind string

const (
	// KindPlaybackUnsupported: the direct backend rejected the source or
	// codec. Fatal for the session.
	KindPlaybackUnsupported ErrorKind = "playback_unsupported"
	// KindPlaybackBlocked: an autoplay/user-gesture policy refused play.
	// Recoverable by a manual retry.
	KindPlaybackBlocked ErrorKind = "playback_blocked"
	// KindEmbedLoadFailure: the embedded player script failed to load or the
	// provider disallows embedding. Fatal for the session.
	KindEmbedLoadFailure ErrorKind = "embed_load_failure"
)

// Fatal reports whether the kind terminates the session.
func (k ErrorKind) Fatal() bool {
	return k == KindPlaybackUnsupported || k == KindEmbedLoadFailure
}

var (
	// ErrSourceUnsupported: the media element rejected the source or codec.
	ErrSourceUnsupported = errors.New("source or codec rejected by media element")
	// ErrAutoplayBlocked: play refused pending a user gesture.
	ErrAutoplayBlocked = errors.New("playback blocked pending user gesture")
	// ErrLocked is returned when a play intent arrives while a required
	// checkpoint holds the session.
	ErrLocked = errors.New("playback locked by checkpoint")
	// ErrNotReady is returned for commands the embedded player cannot take
	// before its ready callback fired.
	ErrNotReady = errors.New("player not ready")
	// ErrFinalized rejects mutations after the attempt was submitted.
	ErrFinalized = errors.New("attempt already finalized")
	// ErrNotEligible rejects finalization before the video was watched to
	// the end with all required checkpoints answered.
	ErrNotEligible = errors.New("attempt not eligible for finalization")
	// ErrNoActiveCheckpoint rejects an answer when nothing is locked or
	// being edited.
	ErrNoActiveCheckpoint = errors.New("no active checkpoint")
	// ErrBadSelection rejects an option index outside the checkpoint's range.
	ErrBadSelection = errors.New("selected option out of range")
	// ErrNotAnswered rejects editing a checkpoint that has no stored answer.
	ErrNotAnswered = errors.New("checkpoint not answered yet")
	// ErrSessionClosed rejects operations after Close.
	ErrSessionClosed = errors.New("session closed")
)
