package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"statusbot/internal/config"
	"statusbot/internal/middleware"
	"statusbot/internal/plugin"
	"statusbot/internal/routes"
	"statusbot/internal/services"

	"github.com/gin-gonic/gin"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch cmd := os.Args[1]; cmd {
	case "serve":
		handleServe(os.Args[2:])
	case "report":
		handleReport(os.Args[2:])
	case "token":
		handleToken(os.Args[2:])
	case "version":
		fmt.Printf("statusbot %s\n", version)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func loadConfig(fs *flag.FlagSet, args []string) *config.Config {
	configPath := fs.String("config", "statusbot.yaml", "path to config file")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func newReporter(cfg *config.Config) *services.StatusReporter {
	return services.NewStatusReporter(services.NewSource(), nil, services.ReporterOptions{
		CPUWindow: cfg.CPUWindow(),
		NetWindow: cfg.NetWindow(),
	})
}

func handleServe(args []string) {
	cfg := loadConfig(flag.NewFlagSet("serve", flag.ExitOnError), args)

	auth, err := services.NewAuthService(cfg.Secret, cfg.TokenExpiry())
	if err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	middleware.NewSecurityLogger()

	reporter := newReporter(cfg)
	hub := services.InitWebSocketHub()
	defer services.StopWebSocketHub()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := plugin.NewRunner(plugin.NewStatusPlugin(reporter, cfg.MonitorPeriod(), hub))
	if err := runner.Start(ctx); err != nil {
		log.Fatalf("Failed to start plugins: %v", err)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	routes.RegisterBotRoutes(r, routes.Gateway{
		Runner:         runner,
		Status:         reporter,
		Hub:            hub,
		Auth:           auth,
		RateLimit:      cfg.RateLimit,
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedIPs:     cfg.AllowedIPs,
		TrustedProxies: cfg.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Gateway listening on %s", cfg.ListenAddr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: server shutdown: %v", err)
	}
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Printf("Warning: plugin shutdown: %v", err)
	}
}

// handleReport runs the status command once and prints the reply
func handleReport(args []string) {
	cfg := loadConfig(flag.NewFlagSet("report", flag.ExitOnError), args)

	status := plugin.NewStatusPlugin(newReporter(cfg), 0, nil)
	msgs, _ := status.Handle(context.Background(), plugin.Event{Sender: "cli", Message: plugin.StatusCommand})
	for _, msg := range msgs {
		fmt.Println(msg.Text)
	}
}

// handleToken issues a gateway token; tokens are never issued over HTTP
func handleToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	name := fs.String("name", "", "name of the chat host the token is issued to")
	cfg := loadConfig(fs, args)

	if !middleware.NewInputValidator().ValidateServerName(*name) {
		fmt.Fprintln(os.Stderr, "--name is required and may only contain letters, digits, '-', '_' and '.'")
		os.Exit(1)
	}

	auth, err := services.NewAuthService(cfg.Secret, cfg.TokenExpiry())
	if err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}

	token, err := auth.GenerateToken(*name)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	middleware.NewSecurityLogger().LogTokenGenerated("cli", *name)
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires: %s\n", auth.TokenExpiry().Format(time.RFC3339))
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [options]

Commands:
  serve  [--config=path]              run the chat gateway
  report [--config=path]              print one status report
  token  --name=<host> [--config=path] issue a gateway token
  version                             show version

`, os.Args[0])
}
