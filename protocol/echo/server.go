package echo

import (
	"github.com/sagernet/sing-echo/common/bufio"
	E "github.com/sagernet/sing-echo/common/exceptions"

	"github.com/sirupsen/logrus"
)

var _ bufio.StreamHandler = (*Service)(nil)

// Service writes every chunk it receives back to the sender. Each read is
// treated as a complete unit, which only holds because nothing is framed.
type Service struct {
	logger logrus.FieldLogger
}

func NewService(logger logrus.FieldLogger) *Service {
	return &Service{logger: logger}
}

func (s *Service) NewData(conn *bufio.StreamConn, data []byte) {
	s.logger.Info("[c->s]: ", string(data))
	_, err := conn.Write(data)
	if err != nil && err != bufio.ErrShuttingDown {
		s.logger.Debug("echo: ", err)
	}
	conn.Inbound().Advance(len(data))
}

func (s *Service) Closed(conn *bufio.StreamConn, err error) {
	if err != nil && !E.IsClosed(err) {
		s.logger.Warn("client closed: ", err)
		return
	}
	s.logger.Info("client closed")
}
