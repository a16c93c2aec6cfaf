package common

import (
	"context"
	"io"
	"log"
)

func Done(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func Must(err error) {
	if err != nil {
		log.Fatalln(err)
	}
}

// Close closes every argument that is a non-nil io.Closer.
func Close(closers ...any) {
	for _, closer := range closers {
		if c, ok := closer.(io.Closer); ok && c != nil {
			c.Close()
		}
	}
}
