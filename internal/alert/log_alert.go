package alert

import (
	"white-traffic-console/internal/model"

	"github.com/sirupsen/logrus"
)

// LogAlertNotifier writes confirmed transitions to the local log
type LogAlertNotifier struct {
	logger *logrus.Logger
}

// NewLogAlertNotifier creates a new log alert notifier
func NewLogAlertNotifier(logger *logrus.Logger) *LogAlertNotifier {
	return &LogAlertNotifier{
		logger: logger,
	}
}

// SendTransition implements Notifier
func (ln *LogAlertNotifier) SendTransition(alert model.Alert, to model.AlertState) error {
	ln.logger.WithFields(logrus.Fields{
		"alert":    alert.ID,
		"severity": alert.Severity,
		"state":    to,
	}).Infof("ALERT [%s] %s: %s", alert.Severity.Label(), to, alert.Title)
	return nil
}
