package notifier

// TextNotifier defines a minimal text notification interface.
// Kept intentionally small so callers can depend on it without importing
// concrete implementations (e.g. Telegram).
type TextNotifier interface {
	SendText(text string) error
}

// Nop discards every message. Used when notifications are disabled.
type Nop struct{}

func (Nop) SendText(string) error { return nil }
