package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"quickpoll/internal/client"
)

func main() {
	opts, err := client.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	cache, err := client.OpenVoteCache(opts.CachePath)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalChan
		log.Println("Shutting 'client' down...")
		cancel()
	}()

	conn, err := client.Dial(ctx, opts.ServerURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	if err := client.NewSession(conn, cache, os.Stdout).Run(ctx, opts); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Println("Connection closed")
			return
		}
		log.Printf("%v", err)
		os.Exit(1)
	}
}
