package audio

// Handle is one loaded, playable audio resource.
type Handle interface {
	Play() error
	Pause() error
	Resume() error
	Stop() error
	// SetVolume takes a level in [0, 1].
	SetVolume(level float64) error
}

// Output loads audio resources. done is called at most once, from any
// goroutine, when the resource ends on its own: nil when it played to the
// end, the failure otherwise. It is never called after Stop.
type Output interface {
	Load(path string, done func(error)) (Handle, error)
}
