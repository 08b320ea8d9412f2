package telegram

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// BuildPoller returns a long poller with the configured timeout.
func BuildPoller(timeoutSeconds int) tele.Poller {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	return &tele.LongPoller{Timeout: time.Duration(timeoutSeconds) * time.Second}
}
