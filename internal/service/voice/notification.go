package voice

// Notification is a transient, user-facing message.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Destructive bool   `json:"destructive"`
}

var (
	notSupported = Notification{
		Title:       "Speech recognition not supported",
		Description: "Your browser doesn't support speech recognition",
		Destructive: true,
	}
	startFailed = Notification{
		Title:       "Speech recognition failed",
		Description: "Please ensure microphone permissions are granted and try again",
		Destructive: true,
	}
)

// ErrorNotification maps a recognizer error code to its message.
func ErrorNotification(code ErrorCode) Notification {
	msg := "Speech recognition failed. "
	switch code {
	case ErrNoSpeech:
		msg += "No speech was detected. Please try again."
	case ErrAudioCapture:
		msg += "Microphone access denied or not available."
	case ErrNotAllowed:
		msg += "Microphone permission denied. Please allow microphone access."
	default:
		msg += "Please try again or type your message."
	}
	return Notification{Title: "Speech recognition error", Description: msg, Destructive: true}
}
