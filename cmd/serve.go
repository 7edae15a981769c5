package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kozaktomas/faceauth/internal/flow"
	"github.com/kozaktomas/faceauth/internal/web"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the faceauth web server.
The server hosts the face registration (/facereg) and face login (/facelog)
screens and the JSON API they use. Face models load in the background;
captures are refused until loading has finished.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session tokens (defaults to a development secret)")
}

// serveOptions merges flags with WEB_* variables, which win when set.
func serveOptions(cmd *cobra.Command) web.Options {
	opts := web.Options{
		Host:          mustGetString(cmd, "host"),
		Port:          mustGetInt(cmd, "port"),
		SessionSecret: mustGetString(cmd, "session-secret"),
	}
	if opts.SessionSecret == "" {
		opts.SessionSecret = os.Getenv("WEB_SESSION_SECRET")
	}
	if env := os.Getenv("WEB_PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil && port > 0 {
			opts.Port = port
		} else {
			log.WithField("WEB_PORT", env).Warn("Ignoring invalid WEB_PORT")
		}
	}
	if env := os.Getenv("WEB_HOST"); env != "" {
		opts.Host = env
	}
	return opts
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logCloser, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := newFaceStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	manager := flow.NewManager(stack.deps, flow.ManagerOptions{
		MaxFrameSize: cfg.Capture.MaxSize,
		IdleTimeout:  cfg.Flow.IdleTimeout,
	})
	go manager.Run(ctx)

	opts := serveOptions(cmd)
	opts.Sessions = store.sessions
	server := web.NewServer(cfg, opts, web.Services{
		Flows:     manager,
		Models:    stack.loader,
		Templates: stack.deps.Templates,
		Users:     stack.deps.Users,
		Languages: stack.translator.Languages(),
	})

	// Start returns as soon as shutdown begins; drained is closed once
	// in-flight requests have finished.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Error during shutdown")
		}
	}()

	log.WithFields(log.Fields{
		"engine":  stack.engine.Name(),
		"storage": cfg.Storage.Backend,
	}).Infof("Starting faceauth on http://%s", opts.Addr())

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-drained
	return nil
}
