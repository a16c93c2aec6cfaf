//go:build unix

package main

import (
	"context"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	echo "github.com/sagernet/sing-echo"
	"github.com/sagernet/sing-echo/common/bufio"
	"github.com/sagernet/sing-echo/common/control"
	E "github.com/sagernet/sing-echo/common/exceptions"
	"github.com/sagernet/sing-echo/common/log"
	N "github.com/sagernet/sing-echo/common/network"
	"github.com/sagernet/sing-echo/conf"
	protocol "github.com/sagernet/sing-echo/protocol/echo"
	"github.com/sagernet/sing-echo/transport/tcp"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	bufferSize int
	verbose    bool
)

func main() {
	command := cobra.Command{
		Use:     "echo-client [server]",
		Short:   "Non-blocking TCP echo client.",
		Long:    "Non-blocking TCP echo client.\n\nSends every line read from stdin to the server and prints the replies.",
		Example: "echo-client 127.0.0.1:9000",
		Version: echo.VersionStr,
		Args:    cobra.MaximumNArgs(1),
		Run:     run,
	}
	command.Flags().StringVarP(&configPath, "config", "c", "", "Use a configuration file.")
	command.Flags().IntVar(&bufferSize, "buffer-size", 0, "Set the initial size of connection buffers.")
	command.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose mode.")
	err := command.Execute()
	if err != nil {
		logrus.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) {
	options := &conf.Options{
		BufferSize: bufferSize,
		Verbose:    verbose,
	}
	if len(args) > 0 {
		options.Server = args[0]
	}
	if configPath != "" {
		fileOptions, err := conf.Load(configPath)
		if err != nil {
			logrus.Fatal(err)
		}
		options.Merge(fileOptions)
	}
	log.SetVerbose(options.Verbose)
	err := options.Validate()
	if err != nil {
		logrus.Fatal(err)
	}
	server, err := options.ServerAddr()
	if err != nil {
		logrus.Fatal(err)
	}

	err = connect(options, server)
	if err != nil {
		logrus.Fatal(err)
	}
}

func connect(options *conf.Options, server netip.AddrPort) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reactor, err := bufio.NewStreamReactor(ctx, options.ReactorOptions()...)
	if err != nil {
		return E.Cause(err, "create reactor")
	}
	client := protocol.NewClient(log.NewLogger("echo"), func(err error) {
		reactor.Close()
	})
	conn, err := tcp.Dial(reactor, server, client, options.TCPOptions()...)
	if err != nil {
		reactor.Close()
		return err
	}
	logrus.Info("connecting to ", server)

	stdin := int(os.Stdin.Fd())
	restore, err := control.SetNonBlocking(stdin)
	if err != nil {
		reactor.Close()
		return E.Cause(err, "stdin")
	}
	defer func() {
		err := restore()
		if err != nil {
			logrus.Warn(err)
		}
	}()
	input := protocol.NewInput(N.NewSocket(stdin), reactor, conn)
	err = input.Start()
	if err != nil {
		reactor.Close()
		return err
	}
	return reactor.Run()
}
