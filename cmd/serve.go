package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/backend"
	"github.com/spf13/cobra"
)

var (
	serveAddr          string
	serveRequireClient bool
	serveOrigin        string
	serveMQTTBroker    string
	serveMQTTTopic     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the product lookup backend the scanner posts to",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if !cmd.Flags().Changed("addr") {
			if port := os.Getenv("PORT"); port != "" {
				serveAddr = ":" + port
			}
		}
		if !cmd.Flags().Changed("origin") {
			serveOrigin = os.Getenv("FRONTEND_URL")
		}
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":5001", "Listen address (env PORT)")
	serveCmd.Flags().BoolVar(&serveRequireClient, "require-client", true, "Answer 503 while no frontend websocket is connected")
	serveCmd.Flags().StringVar(&serveOrigin, "origin", "", "Allowed frontend origin for CORS and websockets (env FRONTEND_URL, default *)")
	serveCmd.Flags().StringVar(&serveMQTTBroker, "mqtt-broker", "", "Also publish events to this MQTT broker (host:port)")
	serveCmd.Flags().StringVar(&serveMQTTTopic, "mqtt-topic", "basket/events", "MQTT topic prefix; the event type is appended")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	db, err := openDB(ctx)
	if err != nil {
		return err
	}

	var publishers []backend.Publisher
	if serveMQTTBroker != "" {
		mq, err := backend.NewMQTTPublisher(serveMQTTBroker, serveMQTTTopic, logger)
		if err != nil {
			return err
		}
		defer mq.Close()
		publishers = append(publishers, mq)
	}

	hub := backend.NewHub(serveOrigin, logger)
	defer hub.Close()

	srv := &http.Server{
		Addr: serveAddr,
		Handler: backend.NewServer(backend.Config{
			RequireClient: serveRequireClient,
			AllowedOrigin: serveOrigin,
		}, db, hub, logger, publishers...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(os.Stderr, "🚀 Server running at http://localhost%s\n", serveAddr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	fmt.Fprintln(os.Stderr, "🛑 Shutting down...")
	// Use Background here because ctx is already cancelled
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub.Close()
	return srv.Shutdown(shutdownCtx)
}
