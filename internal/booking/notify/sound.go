package notify

// Sound is the per-platform sound of a push.
type Sound struct {
	Android string
	IOS     string
}

var defaultSound = Sound{Android: "default", IOS: "default"}

// SoundFor picks the sound: only job offers get the booking sounds, emergencies a louder one.
func SoundFor(kind Kind, immediate bool) Sound {
	if kind != KindSuitableJob {
		return defaultSound
	}
	if immediate {
		return Sound{Android: "emergency_booking", IOS: "emergency_booking.mp3"}
	}
	return Sound{Android: "normal_booking", IOS: "normal_booking.mp3"}
}
