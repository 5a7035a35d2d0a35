package peripheral

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// BroadcastOutcome summarizes a broadcast.
type BroadcastOutcome string

const (
	// OutcomeSent means at least one subscriber existed when the broadcast began.
	OutcomeSent BroadcastOutcome = "sent"
	// OutcomeNoSubscribers means devices are connected but none enabled notifications.
	OutcomeNoSubscribers BroadcastOutcome = "no_subscribers"
	// OutcomeNoConnections means no device is connected.
	OutcomeNoConnections BroadcastOutcome = "no_connections"
)

// BroadcastReport lists per-device results of a broadcast. Stale devices were
// subscribed but no longer connected and got no send; Failed devices were
// evicted from both registries after their send failed.
type BroadcastReport struct {
	Outcome   BroadcastOutcome `json:"outcome"`
	Delivered []DeviceIdentity `json:"delivered"`
	Stale     []DeviceIdentity `json:"stale"`
	Failed    []DeviceIdentity `json:"failed"`
}

func (r BroadcastReport) String() string {
	return fmt.Sprintf("%s: delivered=%d stale=%d failed=%d",
		r.Outcome, len(r.Delivered), len(r.Stale), len(r.Failed))
}

// sendResult classifies a single device in a broadcast.
type sendResult int

const (
	sendDelivered sendResult = iota
	sendStale
	sendFailed
)

// SendMessage notifies text to every subscribed, connected device, one at a
// time in subscription order. With useDirectWrite the text also becomes the
// characteristic's readable value before delivery. A send failure is never
// returned: the device is evicted and listed in the report.
func (s *Session) SendMessage(text string, useDirectWrite bool) (BroadcastReport, error) {
	report := BroadcastReport{
		Delivered: []DeviceIdentity{},
		Stale:     []DeviceIdentity{},
		Failed:    []DeviceIdentity{},
	}
	value := []byte(text)

	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return report, ErrNotRunning
	}
	if useDirectWrite {
		s.readValue = value
	}
	targets := s.subs.subscribers()
	connected := s.conns.len()
	logger := s.logger.WithField("session", s.id)
	s.mu.Unlock()

	if len(targets) == 0 {
		if connected == 0 {
			report.Outcome = OutcomeNoConnections
			logger.Warn("No connected devices to send message to")
		} else {
			report.Outcome = OutcomeNoSubscribers
			logger.WithField("connected", connected).Warn("No devices have enabled notifications")
		}
		return report, nil
	}

	report.Outcome = OutcomeSent
	logger.WithFields(logrus.Fields{
		"subscribers": len(targets),
		"direct":      useDirectWrite,
	}).Info("Sending message")

	for _, id := range targets {
		switch s.sendTo(logger, id, value) {
		case sendDelivered:
			report.Delivered = append(report.Delivered, id)
		case sendStale:
			report.Stale = append(report.Stale, id)
		case sendFailed:
			report.Failed = append(report.Failed, id)
		}
	}

	logger.WithField("report", report.String()).Debug("Broadcast complete")
	return report, nil
}

// sendTo runs one device's check-send-evict sequence under its identity lock,
// so connect, disconnect and CCCD events for that device wait for it.
func (s *Session) sendTo(logger *logrus.Entry, id DeviceIdentity, value []byte) sendResult {
	unlock := s.keys.lock(id)
	defer unlock()

	logger = logger.WithField("address", id.String())

	s.mu.Lock()
	h, connected := s.conns.handle(id)
	subscribed := s.subs.contains(id)
	if !connected {
		s.subs.removeForDisconnect(id)
		s.mu.Unlock()
		logger.Warn("Device no longer connected, removing from notification list")
		return sendStale
	}
	if !subscribed {
		s.mu.Unlock()
		logger.Debug("Device unsubscribed before send")
		return sendStale
	}
	s.mu.Unlock()

	status, err := s.notify(h, value)
	if err == nil && status == StatusSuccess {
		logger.Debug("Notification sent")
		return sendDelivered
	}

	s.mu.Lock()
	// h is still the registered handle: a reconnect needs the identity lock.
	s.conns.onDisconnect(id)
	s.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"status": fmt.Sprintf("0x%02x", uint8(status)),
		"error":  err,
	}).Warn("Notification failed, removing device from lists")
	return sendFailed
}

// notify calls the stack and converts a panic into a transport failure.
func (s *Session) notify(h ConnectionHandle, value []byte) (status Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			status, err = StatusUnlikely, fmt.Errorf("notify panicked: %v", r)
		}
	}()
	return s.stack.Notify(h, value)
}
