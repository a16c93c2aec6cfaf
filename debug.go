//go:build debug

package echo

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/sagernet/sing-echo/common/log"
)

const DebugListen = "127.0.0.1:8964"

func init() {
	go func() {
		err := http.ListenAndServe(DebugListen, nil)
		if err != nil {
			log.NewLogger("debug").Warn("pprof server: ", err)
		}
	}()
}
