package domain

// Well-known sound IDs the daemon expects in the sound directory.
const (
	// SoundWakeChime confirms the wake phrase was heard.
	SoundWakeChime = "wakesound"
	// SoundWakeUp loops during the first alarm phase.
	SoundWakeUp = "wakeup"
	// SoundGetUp loops during the second alarm phase.
	SoundGetUp = "getup"
	// SoundError signals a failed interaction.
	SoundError = "error"
)
