package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vanderheijden86/jobwork/pkg/server"
)

func runServe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("jw serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	df := addDataFlags(fs)
	addr := fs.String("addr", "", "Listen address (default serve.addr, or :$PORT)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := df.config()
	if err != nil {
		return exitCode(stderr, "loading config", err)
	}
	if *addr != "" {
		cfg.Serve.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(stdout, "Serving %s on %s\n", cfg.DataPath(), cfg.Serve.Addr)
	s := server.New(server.Options{
		Addr:           cfg.Serve.Addr,
		DataPath:       cfg.DataPath(),
		AllowedOrigins: cfg.Serve.AllowedOrigins,
		Logger:         log.New(stderr, "", log.LstdFlags),
	})
	if err := s.ListenAndServe(ctx); err != nil {
		return exitCode(stderr, "serving", err)
	}
	return 0
}
