package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/livetemplate/hyde/internal/config"
	"github.com/livetemplate/hyde/internal/server"
)

// shutdownTimeout bounds how long in-flight requests get on Ctrl+C.
const shutdownTimeout = 5 * time.Second

// serveArgs holds the parsed serve command line.
type serveArgs struct {
	dir        string
	configPath string
	port       string
	host       string
	watch      *bool
	debug      bool
}

func parseServeArgs(args []string) (serveArgs, error) {
	sa := serveArgs{dir: "."}

	value := func(i int, flag string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", flag)
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--watch", "-w":
			on := true
			sa.watch = &on
		case "--no-watch":
			off := false
			sa.watch = &off
		case "--debug", "-d":
			sa.debug = true
		case "--port", "-p", "--host", "--config", "-c":
			v, err := value(i, arg)
			if err != nil {
				return sa, err
			}
			i++
			switch arg {
			case "--port", "-p":
				sa.port = v
			case "--host":
				sa.host = v
			default:
				sa.configPath = v
			}
		default:
			if strings.HasPrefix(arg, "-") {
				return sa, fmt.Errorf("unknown flag: %s", arg)
			}
			sa.dir = arg
		}
	}
	return sa, nil
}

// loadServeConfig resolves the configuration for a serve run. Flags win over
// the environment, which wins over the config file.
func loadServeConfig(sa serveArgs, absDir string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if sa.configPath != "" {
		if _, statErr := os.Stat(sa.configPath); statErr != nil {
			return nil, fmt.Errorf("config file not found: %s", sa.configPath)
		}
		cfg, err = config.Load(sa.configPath)
	} else {
		cfg, err = config.LoadFromDir(absDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if sa.port != "" {
		port, err := strconv.Atoi(sa.port)
		if err != nil {
			return nil, fmt.Errorf("invalid port: %s", sa.port)
		}
		cfg.Server.Port = port
	}
	if sa.host != "" {
		cfg.Server.Host = sa.host
	}
	if sa.watch != nil {
		cfg.Features.HotReload = *sa.watch
	}
	if sa.debug {
		cfg.Server.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ServeCommand implements the serve command.
func ServeCommand(args []string) error {
	sa, err := parseServeArgs(args)
	if err != nil {
		return err
	}

	if _, err := os.Stat(sa.dir); os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", sa.dir)
	}
	absDir, err := filepath.Abs(sa.dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	cfg, err := loadServeConfig(sa, absDir)
	if err != nil {
		return err
	}
	if sa.configPath != "" {
		fmt.Printf("📝 Using config: %s\n", sa.configPath)
	}

	fmt.Printf("📚 %s\n\n", cfg.Title)
	fmt.Printf("Serving: %s\n", absDir)

	srv := server.NewWithConfig(absDir, cfg)
	if err := srv.Discover(); err != nil {
		return fmt.Errorf("failed to discover pages: %w", err)
	}

	fmt.Printf("\nPages discovered:\n")
	for _, route := range srv.Routes() {
		fmt.Printf("  %-30s %s\n", route.Pattern, route.FilePath)
	}
	if len(srv.Routes()) == 0 {
		fmt.Printf("  (none - add a .md file to %s)\n", absDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Features.HotReload {
		if err := srv.EnableWatch(cfg.Server.Debug); err != nil {
			return fmt.Errorf("failed to enable watch mode: %w", err)
		}
		defer srv.StopWatch()
		fmt.Printf("\n👀 Watch mode enabled - pages reload on changes\n")
	}

	sweepDone := srv.StartLimiterSweep(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("\n🌐 Server running at http://%s\n", addr)
	fmt.Printf("🍪 Page state cookie: %s\n", srv.Behaviour().Store().Name())
	fmt.Printf("⚡ Gzip compression enabled\n")
	fmt.Printf("Press Ctrl+C to stop\n\n")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		fmt.Printf("\n👋 Shutting down\n")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	stop()
	<-sweepDone

	return nil
}

func init() {
	log.SetFlags(0) // Remove timestamp from logs
}
