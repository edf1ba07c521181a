package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/relaycast/internal/server"
	"github.com/Tyrowin/relaycast/internal/tts"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Println("Starting Relaycast server...")

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	relay := server.NewRelay()
	router := server.SetupRoutes(server.NewRelayHandler(relay))

	// The speech proxy is an optional collaborator; the relay runs fine
	// without an upstream configured.
	if config.TTSUpstreamURL != "" {
		speech := tts.NewHandler(tts.NewClient(config.TTSUpstreamURL))
		speech.Register(router)
		log.Printf("Speech proxy enabled, upstream %s", config.TTSUpstreamURL)
	}

	httpServer := server.CreateServer(config.Port, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Printf("Received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown incomplete: %v", err)
	}
	if err := relay.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Relay shutdown incomplete: %v", err)
	}
}
