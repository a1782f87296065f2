package accounts

// Observer receives counters for link and notification traffic. The metrics
// package provides a Prometheus implementation.
type Observer interface {
	LinkIssued(kind LinkKind)
	LinkChecked(kind LinkKind, result string)
	NotificationDelivered(channel Channel, notificationType string, err error)
}

// Results reported through Observer.LinkChecked.
const (
	LinkResultValid       = "valid"
	LinkResultExpired     = "expired"
	LinkResultInvalid     = "invalid"
	LinkResultMalformed   = "malformed"
	LinkResultAlreadyUsed = "already_used"
)

type noopObserver struct{}

func (noopObserver) LinkIssued(LinkKind)                          {}
func (noopObserver) LinkChecked(LinkKind, string)                 {}
func (noopObserver) NotificationDelivered(Channel, string, error) {}

func normalizeObserver(o Observer) Observer {
	if o == nil {
		return noopObserver{}
	}
	return o
}
