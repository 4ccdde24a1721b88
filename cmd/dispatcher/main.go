// Command dispatcher runs the trampoline task dispatcher: it reads
// dispatcher.toml from the working directory, connects to the
// configured broker, and pumps messages between the bus and the
// handlers declared in config until it receives a shutdown signal.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tksfz/trampoline/internal/broker"
	"github.com/tksfz/trampoline/internal/config"
	"github.com/tksfz/trampoline/internal/dispatch"
	"github.com/tksfz/trampoline/internal/forwarder"
	"github.com/tksfz/trampoline/internal/ingress"
	"github.com/tksfz/trampoline/internal/metrics"
	"github.com/tksfz/trampoline/internal/registry"
)

const configFile = "dispatcher.toml"

func main() {
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("failed to load %s: %v", configFile, err)
	}

	httpClient := &http.Client{
		Timeout: time.Duration(cfg.Dispatch.HTTPTimeoutSeconds) * time.Second,
	}

	reg, err := registry.NewRegistry(cfg.Handlers, httpClient)
	if err != nil {
		log.Fatalf("failed to build handler registry: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subscriptionName := "dispatcher-" + uuid.New().String()
	brokerClient := broker.NewClient(cfg.Mq.URL, subscriptionName, false)
	if err := brokerClient.Connect(ctx); err != nil {
		log.Fatalf("failed to connect to broker at %s: %v", cfg.Mq.URL, err)
	}
	defer brokerClient.Close()

	if err := brokerClient.Subscribe(cfg.Mq.Topics); err != nil {
		log.Fatalf("failed to subscribe to topics %v: %v", cfg.Mq.Topics, err)
	}

	producer := broker.NewSerializedProducer(brokerClient)
	counters := &metrics.Counters{}
	fwd := forwarder.New(reg)
	loop := dispatch.New(brokerClient, producer, fwd, counters)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil {
			log.Printf("dispatch loop terminated: %v", err)
			cancel()
		}
	}()

	ingressServer := ingress.New(producer, counters)
	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Dispatch.IngressPort),
		Handler: ingressServer,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("ingress server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("ingress server error: %v", err)
			cancel()
		}
	}()

	log.Printf("trampoline dispatcher started: mq=%s topics=%v handlers=%d", cfg.Mq.URL, cfg.Mq.Topics, len(cfg.Handlers))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("received signal %s, shutting down", sig)
	case <-ctx.Done():
		log.Printf("context cancelled, shutting down")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("ingress server shutdown error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("all services shut down")
	case <-time.After(10 * time.Second):
		log.Println("shutdown timeout exceeded")
	}
}
