package tcp

import (
	"github.com/sagernet/sing-echo/common/control"

	"github.com/sirupsen/logrus"
)

const DefaultBacklog = 16

type Option func(*options)

type options struct {
	backlog int
	noDelay bool
	control control.Func
	logger  logrus.FieldLogger
}

func newOptions(opts []Option) options {
	o := options{
		backlog: DefaultBacklog,
		noDelay: true,
	}
	for _, option := range opts {
		option(&o)
	}
	return o
}

func WithBacklog(backlog int) Option {
	return func(o *options) {
		if backlog > 0 {
			o.backlog = backlog
		}
	}
}

// WithControl adds a func run on every accepted or dialed socket.
func WithControl(f control.Func) Option {
	return func(o *options) {
		o.control = control.Append(o.control, f)
	}
}

// WithoutNoDelay leaves Nagle's algorithm enabled.
func WithoutNoDelay() Option {
	return func(o *options) {
		o.noDelay = false
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
