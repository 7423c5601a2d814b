package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/rpc"
)

// serveHTTP runs srv's JSON-RPC handler on addr until ctx is cancelled,
// then shuts it down gracefully.
func serveHTTP(ctx context.Context, addr string, srv *rpc.Server) error {
	httpSrv := &http.Server{Addr: addr, Handler: srv}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		srv.Stop()
		return httpSrv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
