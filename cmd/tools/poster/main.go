package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/riteshshukladev/MCP-Agent-for-X/internal/app"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/client"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/config"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/workflow"
)

var (
	serverURL string
	topic     string
	embedded  bool
	timeout   time.Duration
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	rootCmd := &cobra.Command{
		Use:          "poster",
		Short:        "Generate a post in the account's style and publish it",
		Long:         "Connects to the capability gateway, refreshes the post cache, renders the generate-post prompt, generates text and publishes it.",
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVar(&serverURL, "server", "http://localhost:3001/sse", "Gateway stream URL")
	rootCmd.Flags().StringVarP(&topic, "topic", "t", workflow.DefaultTopic, "Topic for the new post")
	rootCmd.Flags().BoolVar(&embedded, "embedded", false, "Start the gateway in-process instead of dialing --server")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall deadline for the run")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] failed to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	generator, err := app.NewGenerator(ctx, cfg)
	if err != nil {
		return err
	}

	target := serverURL
	if embedded {
		url, shutdown, err := startEmbedded(cfg)
		if err != nil {
			return err
		}
		defer shutdown()
		target = url
	}

	log.Printf("[poster] connecting to %s", target)
	gw, err := client.Connect(ctx, target)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer gw.Close()

	report, err := workflow.NewOrchestrator(gw, generator).Run(ctx, topic)
	if err != nil {
		log.Printf("[poster] stopped after steps %v", report.Steps)
		return err
	}

	fmt.Printf("Generated post:\n%q\n%s\n", report.GeneratedText, report.PostMessage)
	log.Println("[poster] workflow completed successfully")
	return nil
}

// startEmbedded serves a gateway on a loopback port and returns its stream URL.
func startEmbedded(cfg *config.Config) (string, func(), error) {
	gateway, err := app.NewGateway(cfg)
	if err != nil {
		return "", nil, err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{Handler: gateway.Handler, ReadHeaderTimeout: 5 * time.Second}
	srv.RegisterOnShutdown(gateway.Close)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[poster] embedded gateway stopped: %v", err)
		}
	}()

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	url := "http://" + ln.Addr().String() + "/sse"
	log.Printf("[poster] embedded gateway on %s", url)
	return url, shutdown, nil
}
