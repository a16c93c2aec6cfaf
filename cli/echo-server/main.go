package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	echo "github.com/sagernet/sing-echo"
	"github.com/sagernet/sing-echo/common"
	"github.com/sagernet/sing-echo/common/bufio"
	"github.com/sagernet/sing-echo/common/log"
	"github.com/sagernet/sing-echo/conf"
	protocol "github.com/sagernet/sing-echo/protocol/echo"
	"github.com/sagernet/sing-echo/transport/tcp"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	bufferSize int
	backlog    int
	verbose    bool
)

func main() {
	command := cobra.Command{
		Use:     "echo-server [listen]",
		Short:   "Non-blocking TCP echo server.",
		Example: "echo-server 127.0.0.1:9000",
		Version: echo.VersionStr,
		Args:    cobra.MaximumNArgs(1),
		Run:     run,
	}
	command.Flags().StringVarP(&configPath, "config", "c", "", "Use a configuration file.")
	command.Flags().IntVar(&bufferSize, "buffer-size", 0, "Set the initial size of connection buffers.")
	command.Flags().IntVar(&backlog, "backlog", 0, "Set the listen backlog.")
	command.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose mode.")
	err := command.Execute()
	if err != nil {
		logrus.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) {
	options := &conf.Options{
		BufferSize: bufferSize,
		Backlog:    backlog,
		Verbose:    verbose,
	}
	if len(args) > 0 {
		options.Listen = args[0]
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
	bind, err := options.ListenAddr()
	if err != nil {
		logrus.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reactor, err := bufio.NewStreamReactor(ctx, options.ReactorOptions()...)
	if err != nil {
		logrus.Fatal("create reactor: ", err)
	}
	service := protocol.NewService(log.NewLogger("echo"))
	listener := tcp.NewTCPListener(bind, reactor, service, options.TCPOptions()...)
	err = listener.Start()
	if err != nil {
		common.Close(listener, reactor)
		logrus.Fatal("start server: ", err)
	}

	err = reactor.Run()
	common.Close(listener)
	if err != nil {
		logrus.Fatal(err)
	}
}
