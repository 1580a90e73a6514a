package mqtt

import (
	"crypto/tls"

	"github.com/golang-io/requests"
)

// Options configures a Client at construction time. New always starts
// from DefaultOptions and applies the caller's Option values on top,
// mirroring the C reference's MQTTPacket_connectData_initializer
// defaults.
type Options struct {
	ClientID     string
	Version      byte
	CleanSession bool
	KeepAlive    uint16

	Username    string
	Password    string
	hasUsername bool
	hasPassword bool

	WillTopic   string
	WillMessage []byte
	WillQoS     byte
	WillRetain  bool
	hasWill     bool

	CommandTimeoutMS uint32
	SendBufSize      int
	RecvBufSize      int

	TLSConfig *tls.Config
}

// DefaultOptions mirrors MQTTPacket_connectData_initializer: clean
// session, 60 second keep-alive, protocol 3.1.1, no credentials or
// will, and an empty client ID, which New replaces with a generated
// one (see WithClientID).
func DefaultOptions() Options {
	return Options{
		Version:          VersionMQTT311,
		CleanSession:     true,
		KeepAlive:        60,
		CommandTimeoutMS: 5000,
		SendBufSize:      1024,
		RecvBufSize:      1024,
	}
}

// Option mutates Options during New.
type Option func(*Options)

// WithClientID sets the client identifier. If never set, New assigns
// one via requests.GenId so two clients in the same process never
// collide on an empty ID.
func WithClientID(id string) Option {
	return func(o *Options) { o.ClientID = id }
}

func WithVersion(version byte) Option {
	return func(o *Options) { o.Version = version }
}

func WithCleanSession(clean bool) Option {
	return func(o *Options) { o.CleanSession = clean }
}

func WithKeepAlive(seconds uint16) Option {
	return func(o *Options) { o.KeepAlive = seconds }
}

func WithCredentials(username, password string) Option {
	return func(o *Options) {
		o.Username = username
		o.hasUsername = true
		if password != "" {
			o.Password = password
			o.hasPassword = true
		}
	}
}

func WithWill(topic string, message []byte, qos byte, retain bool) Option {
	return func(o *Options) {
		o.WillTopic = topic
		o.WillMessage = message
		o.WillQoS = qos
		o.WillRetain = retain
		o.hasWill = true
	}
}

func WithCommandTimeout(ms uint32) Option {
	return func(o *Options) { o.CommandTimeoutMS = ms }
}

// WithBuffers sizes the fixed send/receive buffers. Both must be large
// enough to hold the single largest packet the application will send
// or receive; there is no fallback allocation if a packet overruns
// them.
func WithBuffers(sendSize, recvSize int) Option {
	return func(o *Options) {
		o.SendBufSize = sendSize
		o.RecvBufSize = recvSize
	}
}

func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *Options) { o.TLSConfig = cfg }
}

func newOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.ClientID == "" {
		o.ClientID = "mqtt-" + requests.GenId()
	}
	return o
}
