package sound

import "time"

// Backend is the playback strategy behind the engine. Two implementations
// exist: LocalBackend (system mixer via beep/speaker) and RemoteBackend
// (networked speaker driven over HTTP).
//
// Play blocks until the sound finishes or Stop interrupts it. Backends
// return errors; the engine converts them to boolean failure results so
// nothing propagates past the public playback API.
type Backend interface {
	Init() error
	Play(info Info) error
	IsPlaying() bool
	Stop()
	SetVolume(v float64)
	FadeOut(d time.Duration)
	Close() error
}
