package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/alex65536/formgate/internal/util/slogx"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"
)

type server struct {
	name   string
	serv   *http.Server
	secure bool
}

type servers struct {
	items []server
	log   *slog.Logger
}

func newServers(ctx context.Context, log *slog.Logger, o *Options, h http.Handler) (*servers, error) {
	if o.HTTPS != nil && o.HTTPS.CachePath == "" {
		return nil, fmt.Errorf("certificate cache path not specified")
	}
	s := &servers{log: log}
	baseCtx := func(net.Listener) context.Context { return ctx }
	if o.HTTPS == nil || o.HTTPS.ExposeInsecure {
		s.items = append(s.items, server{
			name: "insecure",
			serv: &http.Server{
				Addr:              o.AddrWithPort(),
				Handler:           h,
				BaseContext:       baseCtx,
				ReadHeaderTimeout: 10 * time.Second,
			},
		})
	}
	if o.HTTPS != nil {
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(slices.Clone(o.HTTPS.AllowedSecureDomains)...),
			Cache:      autocert.DirCache(o.HTTPS.CachePath),
		}
		s.items = append(s.items, server{
			name: "secure",
			serv: &http.Server{
				Addr:              o.SecureAddrWithPort(),
				TLSConfig:         m.TLSConfig(),
				Handler:           h,
				BaseContext:       baseCtx,
				ReadHeaderTimeout: 10 * time.Second,
			},
			secure: true,
		})
	}
	return s, nil
}

// Run serves until ctx is done or any server fails, then shuts all of them down.
func (s *servers) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, it := range s.items {
		g.Go(func() error {
			log := s.log.With(slog.String("name", it.name), slog.String("addr", it.serv.Addr))
			log.Info("starting http server")
			var err error
			if it.secure {
				err = it.serv.ListenAndServeTLS("", "")
			} else {
				err = it.serv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("listen http server failed", slogx.Err(err))
				return fmt.Errorf("server %v: %w", it.name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		for _, it := range s.items {
			log := s.log.With(slog.String("name", it.name))
			log.Info("stopping http server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := it.serv.Shutdown(shutCtx); err != nil {
				log.Warn("could not shut down server", slogx.Err(err))
			}
			cancel()
		}
		return nil
	})
	return g.Wait()
}
