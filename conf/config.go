package conf

import (
	"encoding/json"
	"net/netip"
	"os"

	"github.com/sagernet/sing-echo/common/bufio"
	E "github.com/sagernet/sing-echo/common/exceptions"
	"github.com/sagernet/sing-echo/transport/tcp"
)

const MaxBufferSize = 16 * 1024 * 1024

type Options struct {
	Listen     string `json:"listen,omitempty"`
	Server     string `json:"server,omitempty"`
	BufferSize int    `json:"buffer_size,omitempty"`
	Backlog    int    `json:"backlog,omitempty"`
	NoDelay    *bool  `json:"no_delay,omitempty"`
	Verbose    bool   `json:"verbose,omitempty"`
}

func Load(path string) (*Options, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, E.Cause(err, "read config file")
	}
	options := new(Options)
	err = json.Unmarshal(content, options)
	if err != nil {
		return nil, E.Cause(err, "decode config file")
	}
	return options, nil
}

// Merge fills every unset field of o from file. Values already set, such as
// the ones given on the command line, win.
func (o *Options) Merge(file *Options) {
	if file == nil {
		return
	}
	if o.Listen == "" {
		o.Listen = file.Listen
	}
	if o.Server == "" {
		o.Server = file.Server
	}
	if o.BufferSize == 0 {
		o.BufferSize = file.BufferSize
	}
	if o.Backlog == 0 {
		o.Backlog = file.Backlog
	}
	if o.NoDelay == nil {
		o.NoDelay = file.NoDelay
	}
	if file.Verbose {
		o.Verbose = true
	}
}

func (o *Options) Validate() error {
	if o.BufferSize < 0 || o.BufferSize > MaxBufferSize {
		return E.New("invalid buffer size: ", o.BufferSize)
	}
	if o.Backlog < 0 {
		return E.New("invalid backlog: ", o.Backlog)
	}
	return nil
}

func (o *Options) ListenAddr() (netip.AddrPort, error) {
	if o.Listen == "" {
		return netip.AddrPort{}, E.New("missing listen address")
	}
	addr, err := netip.ParseAddrPort(o.Listen)
	if err != nil {
		return netip.AddrPort{}, E.Cause(err, "bad listen address")
	}
	return addr, nil
}

func (o *Options) ServerAddr() (netip.AddrPort, error) {
	if o.Server == "" {
		return netip.AddrPort{}, E.New("missing server address")
	}
	addr, err := netip.ParseAddrPort(o.Server)
	if err != nil {
		return netip.AddrPort{}, E.Cause(err, "bad server address")
	}
	return addr, nil
}

func (o *Options) ReactorOptions() []bufio.ReactorOption {
	var options []bufio.ReactorOption
	if o.BufferSize > 0 {
		options = append(options, bufio.WithBufferSize(o.BufferSize))
	}
	return options
}

func (o *Options) TCPOptions() []tcp.Option {
	var options []tcp.Option
	if o.Backlog > 0 {
		options = append(options, tcp.WithBacklog(o.Backlog))
	}
	if o.NoDelay != nil && !*o.NoDelay {
		options = append(options, tcp.WithoutNoDelay())
	}
	return options
}
