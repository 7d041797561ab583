package notify

// Notifier is the outbound transport boundary: deliver text to one
// recipient, optionally with HTML-style light markup.
type Notifier interface {
	Send(recipient int64, text string, html bool) error
}
