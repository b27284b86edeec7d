package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"groupchat/internal/server"
)

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	srv := server.New(*addr)
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	srv.Stop()
}
