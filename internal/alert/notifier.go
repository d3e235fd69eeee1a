package alert

import "white-traffic-console/internal/model"

// Notifier is told about every alert transition the backend confirmed.
type Notifier interface {
	SendTransition(alert model.Alert, to model.AlertState) error
}
