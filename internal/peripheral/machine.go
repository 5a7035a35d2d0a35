package peripheral

import (
	"bytes"
	"strings"

	"github.com/sirupsen/logrus"
)

// HandleEvent applies one stack event to the session. It is safe to call from
// any goroutine and never panics. Events received while the session is stopped
// are dropped.
func (s *Session) HandleEvent(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{
				"event": eventName(ev),
				"panic": r,
			}).Error("GATT event handler panicked")
		}
	}()

	switch e := ev.(type) {
	case ConnectionStateChanged:
		s.onConnectionStateChanged(e)
	case CharacteristicReadRequest:
		s.onCharacteristicRead(e)
	case CharacteristicWriteRequest:
		s.onCharacteristicWrite(e)
	case DescriptorWriteRequest:
		s.onDescriptorWrite(e)
	case DescriptorReadRequest:
		s.onDescriptorRead(e)
	case AdvertiseStartResult:
		s.onAdvertiseStartResult(e)
	default:
		s.logger.WithField("event", eventName(ev)).Debug("Ignoring unsupported GATT event")
	}
}

// lockDevice takes the identity lock for h and then the session mutex. The
// returned ok is false when the session is stopped; in that case both locks
// are already released.
func (s *Session) lockDevice(h ConnectionHandle) (id DeviceIdentity, unlock func(), ok bool) {
	id = IdentityOf(h)
	unlockKey := s.keys.lock(id)
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		unlockKey()
		return id, nil, false
	}
	return id, unlockKey, true
}

func (s *Session) deviceLogger(id DeviceIdentity) *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{
		"session": s.id,
		"address": id.String(),
	})
}

func (s *Session) onConnectionStateChanged(e ConnectionStateChanged) {
	id, unlock, ok := s.lockDevice(e.Handle)
	if !ok {
		s.logger.WithField("address", id.String()).Debug("Session stopped, dropping connection state change")
		return
	}
	defer unlock()

	logger := s.deviceLogger(id).WithFields(logrus.Fields{
		"status": e.Status,
		"state":  e.State.String(),
	})

	switch e.State {
	case LinkConnected:
		isNew := s.conns.onConnect(id, e.Handle)
		s.mu.Unlock()

		if !isNew {
			logger.Warn("Duplicate connection for known device, replaced stale entry")
			return
		}
		logger.Info("Device connected")
		s.emit(deviceSignal(SignalDeviceConnected, id))

	case LinkDisconnected:
		removed := s.conns.onDisconnect(id)
		s.mu.Unlock()

		if !removed {
			logger.Debug("Disconnect for unknown device")
		} else {
			logger.Info("Device disconnected")
		}
		s.emit(deviceSignal(SignalDeviceDisconnected, id))

	default:
		s.mu.Unlock()
		logger.Debug("Ignoring unknown link state")
	}
}

func (s *Session) onCharacteristicRead(e CharacteristicReadRequest) {
	id, unlock, ok := s.lockDevice(e.Handle)
	if !ok {
		return
	}
	defer unlock()

	connected := s.conns.isConnected(id)
	value := s.readValue
	logger := s.deviceLogger(id).WithField("request_id", e.RequestID)
	s.mu.Unlock()

	if !connected {
		logger.Warn("Read request from device that is not connected")
	}

	if e.Offset < 0 || e.Offset > len(value) {
		logger.WithField("offset", e.Offset).Warn("Read request offset past end of value")
		s.respond(logger, e.Handle, e.RequestID, StatusInvalidOffset, e.Offset, nil)
		return
	}
	s.respond(logger, e.Handle, e.RequestID, StatusSuccess, e.Offset, value[e.Offset:])
}

func (s *Session) onCharacteristicWrite(e CharacteristicWriteRequest) {
	id, unlock, ok := s.lockDevice(e.Handle)
	if !ok {
		return
	}
	defer unlock()

	connected := s.conns.isConnected(id)
	logger := s.deviceLogger(id).WithField("request_id", e.RequestID)
	s.mu.Unlock()

	if connected {
		text := strings.ToValidUTF8(string(e.Value), "�")
		logger.WithField("len", len(e.Value)).Debug("Message received")
		s.emit(Signal{Kind: SignalMessageReceived, Address: id.String(), Text: text})
	} else {
		logger.Warn("Write request from device that is not connected, dropping message")
	}

	if e.ResponseNeeded {
		s.respond(logger, e.Handle, e.RequestID, StatusSuccess, e.Offset, e.Value)
	}
}

func (s *Session) onDescriptorWrite(e DescriptorWriteRequest) {
	id, unlock, ok := s.lockDevice(e.Handle)
	if !ok {
		return
	}
	defer unlock()

	logger := s.deviceLogger(id).WithFields(logrus.Fields{
		"request_id": e.RequestID,
		"descriptor": e.Descriptor,
	})

	var sig *Signal
	var msg string
	switch {
	case NormalizeUUID(e.Descriptor) != CCCDUUID:
		logger.Debug("Write to unsupported descriptor ignored")

	case bytes.Equal(e.Value, EnableNotificationValue):
		switch res := s.subs.enable(id); res {
		case Enabled:
			sig = &Signal{Kind: SignalNotificationsEnabled, Address: id.String()}
			msg = "Notifications enabled"
		case AlreadySubscribed:
			logger.Debug("Notifications already enabled")
		default:
			logger.WithField("result", res.String()).Warn("Notification enable from device that is not connected")
		}

	case bytes.Equal(e.Value, DisableNotificationValue):
		if s.subs.disable(id) {
			sig = &Signal{Kind: SignalNotificationsDisabled, Address: id.String()}
			msg = "Notifications disabled"
		} else {
			logger.Debug("Notifications already disabled")
		}

	default:
		logger.WithField("value", e.Value).Warn("Unrecognized CCCD value")
	}
	s.mu.Unlock()

	if sig != nil {
		logger.Info(msg)
		s.emit(*sig)
	}

	if e.ResponseNeeded {
		s.respond(logger, e.Handle, e.RequestID, StatusSuccess, e.Offset, e.Value)
	}
}

func (s *Session) onDescriptorRead(e DescriptorReadRequest) {
	id, unlock, ok := s.lockDevice(e.Handle)
	if !ok {
		return
	}
	defer unlock()

	logger := s.deviceLogger(id).WithField("request_id", e.RequestID)
	s.mu.Unlock()

	s.respond(logger, e.Handle, e.RequestID, StatusSuccess, e.Offset, EnableNotificationValue)
}

func (s *Session) onAdvertiseStartResult(e AdvertiseStartResult) {
	s.mu.Lock()
	if s.state != StateStarting {
		state, sessionID := s.state, s.id
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{
			"session": sessionID,
			"state":   state.String(),
		}).Debug("Ignoring advertise start result outside of startup")
		return
	}
	sessionID := s.id
	if e.Err == nil {
		s.state = StateAdvertising
		s.mu.Unlock()

		s.logger.WithField("session", sessionID).Info("Advertising started")
		s.emit(Signal{Kind: SignalAdvertisingStarted})
		return
	}
	s.mu.Unlock()

	_ = s.failSetup(sessionID, asSetupError(e.Err, SetupAdvertiseFailed))
}

// respond sends a protocol response. Failures are logged only; a handler
// never propagates them.
func (s *Session) respond(logger *logrus.Entry, h ConnectionHandle, requestID int, status Status, offset int, value []byte) {
	if err := s.stack.SendResponse(h, requestID, status, offset, value); err != nil {
		logger.WithError(err).Warn("Failed to send GATT response")
	}
}

func eventName(ev Event) string {
	switch ev.(type) {
	case ConnectionStateChanged:
		return "connection_state_changed"
	case CharacteristicReadRequest:
		return "characteristic_read"
	case CharacteristicWriteRequest:
		return "characteristic_write"
	case DescriptorWriteRequest:
		return "descriptor_write"
	case DescriptorReadRequest:
		return "descriptor_read"
	case AdvertiseStartResult:
		return "advertise_start_result"
	default:
		return "unknown"
	}
}
