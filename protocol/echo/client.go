package echo

import (
	"github.com/sagernet/sing-echo/common/bufio"
	E "github.com/sagernet/sing-echo/common/exceptions"

	"github.com/sirupsen/logrus"
)

var _ bufio.StreamHandler = (*Client)(nil)

// Client logs whatever the server sends and calls onClose when the server
// goes away.
type Client struct {
	logger  logrus.FieldLogger
	onClose func(err error)
}

func NewClient(logger logrus.FieldLogger, onClose func(err error)) *Client {
	return &Client{
		logger:  logger,
		onClose: onClose,
	}
}

func (c *Client) NewData(conn *bufio.StreamConn, data []byte) {
	c.logger.Info("[s->c]: ", string(data))
	conn.Inbound().Advance(len(data))
}

func (c *Client) Closed(conn *bufio.StreamConn, err error) {
	if err != nil && !E.IsClosed(err) {
		c.logger.Warn("server closed: ", err)
	} else {
		c.logger.Info("server closed")
	}
	if c.onClose != nil {
		c.onClose(err)
	}
}
