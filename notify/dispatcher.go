package notify

import (
	"flatwatch/models"
	"flatwatch/utils"
)

// Dispatcher sends the composed message to every configured recipient.
type Dispatcher struct {
	notifier Notifier
	logger   *utils.Logger
}

// NewDispatcher creates a Dispatcher over the given transport.
func NewDispatcher(notifier Notifier, logger *utils.Logger) *Dispatcher {
	return &Dispatcher{notifier: notifier, logger: logger}
}

// Dispatch composes one message from the passing listings and sends it to
// each recipient in turn. Empty input never touches the transport. A
// failure for one recipient is recorded and logged; the remaining
// recipients are still attempted, and nothing is retried within the cycle.
func (d *Dispatcher) Dispatch(listings []*models.Listing, recipients []int64) models.DispatchResult {
	result := models.DispatchResult{Failed: make(map[int64]error)}

	if len(listings) == 0 {
		return result
	}

	message := ComposeMessage(listings)

	for _, recipient := range recipients {
		if err := d.notifier.Send(recipient, message, true); err != nil {
			terr := &models.TransportError{Recipient: recipient, Err: err}
			d.logger.Error("[notify] %v", terr)
			result.Failed[recipient] = terr
			continue
		}
		result.Delivered = append(result.Delivered, recipient)
	}

	d.logger.Info("[notify] Dispatched %d listings to %d/%d recipients",
		len(listings), len(result.Delivered), len(recipients))
	return result
}
