package mqtt

import "errors"

// Sentinel errors returned by the Go-facing API. The C reference this
// engine is ported from reports MQTT_SUCCESS/MQTT_FAILURE/
// MQTT_CONNECTION_LOST from every blocking call; here each distinct
// failure gets its own error value instead, so callers can
// errors.Is/switch on the specific cause.
var (
	ErrNotConnected     = errors.New("mqtt: not connected")
	ErrAlreadyConnected = errors.New("mqtt: already connected")
	ErrHandlerTableFull = errors.New("mqtt: message handler table is full")
	ErrBufferTooSmall   = errors.New("mqtt: packet does not fit in the configured buffer")
	ErrConnectionLost   = errors.New("mqtt: connection lost")
	ErrTimeout          = errors.New("mqtt: command timed out waiting for acknowledgement")
	ErrUnexpectedPacket = errors.New("mqtt: broker returned an unexpected packet type")
)
