package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/blockvote/internal/auth"
	"github.com/abrezinsky/blockvote/internal/config"
	"github.com/abrezinsky/blockvote/internal/handlers"
	"github.com/abrezinsky/blockvote/internal/logger"
	"github.com/abrezinsky/blockvote/internal/repository"
	"github.com/abrezinsky/blockvote/internal/services"
	"github.com/abrezinsky/blockvote/internal/websocket"
)

const shutdownTimeout = 5 * time.Second

// App holds all application dependencies
type App struct {
	log      logger.Logger
	cfg      config.Config
	repo     *repository.Repository
	access   *services.AccessController
	hub      *websocket.Hub
	handlers *handlers.Handlers
}

// New opens the ledger store and wires the services, hub and handlers.
// It fails if the store belongs to a different administrator.
func New(ctx context.Context, log logger.Logger, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", cfg.DBPath, err)
	}

	access, err := services.LoadAccessController(ctx, repo, cfg.Admin())
	if err != nil {
		repo.Close()
		return nil, err
	}

	// Initialize services around a single ledger
	ledger := services.NewLedger(log, repo, services.SystemClock{}, access)
	svc := handlers.Services{
		Elections:  services.NewElectionService(ledger),
		Candidates: services.NewCandidateService(ledger),
		Voters:     services.NewVoterService(ledger),
		Voting:     services.NewVotingService(ledger),
		Audit:      services.NewAuditService(ledger),
		Access:     access,
	}

	// Committed ledger events fan out to websocket clients
	hub := websocket.New(log, svc.Elections)
	ledger.SetBroadcaster(hub)

	walletAuth := auth.New(auth.Options{
		SessionExpiry:     cfg.SessionExpiry,
		ChallengeExpiry:   cfg.ChallengeExpiry,
		TrustWalletHeader: cfg.TrustWalletHeader,
	})
	if cfg.TrustWalletHeader {
		log.Warn("Trusting wallet header; only run behind an authenticating proxy", "header", auth.WalletHeader)
	}

	h := handlers.New(svc, walletAuth, hub, repo, log, cfg.AllowedOrigins)

	return &App{
		log:      log,
		cfg:      cfg,
		repo:     repo,
		access:   access,
		hub:      hub,
		handlers: h,
	}, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Close releases the ledger store
func (a *App) Close() error {
	return a.repo.Close()
}

// Run listens on addr and serves until ctx is cancelled
func (a *App) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve starts the hub and status watcher and serves HTTP on ln.
// When ctx is cancelled the server drains in-flight requests and returns nil.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.hub.Start(ctx)
	go a.hub.WatchStatuses(ctx, a.cfg.StatusInterval)

	srv := &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	port := 0
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	baseURL := fmt.Sprintf("http://%s:%d", getPreferredIP(realNetworkProvider{}), port)
	a.log.Info("Server starting", "url", baseURL, "admin", a.access.Admin().Hex())
	a.log.Info("Change feed", "url", strings.Replace(baseURL, "http", "ws", 1)+"/ws")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

// realInterface wraps a real net.Interface
type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider is an interface for getting network interfaces (for testing)
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

// realNetworkProvider implements networkProvider using actual net package
type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the best IP address for LAN access.
// Prefers private network addresses (192.168.x.x, 10.x.x.x, 172.16-31.x.x).
// Falls back to localhost if no suitable address is found.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP

	for _, iface := range ifaces {
		// Skip down, loopback, and point-to-point interfaces
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			// Only consider IPv4 addresses
			if ip == nil || ip.To4() == nil {
				continue
			}

			// Skip loopback
			if ip.IsLoopback() {
				continue
			}

			candidates = append(candidates, ip)
		}
	}

	// Prefer private network addresses
	for _, ip := range candidates {
		ipStr := ip.String()
		if strings.HasPrefix(ipStr, "192.168.") ||
			strings.HasPrefix(ipStr, "10.") ||
			isPrivate172(ip) {
			return ipStr
		}
	}

	// Fall back to any non-loopback if no private address found
	if len(candidates) > 0 {
		return candidates[0].String()
	}

	return "localhost"
}

// isPrivate172 checks if IP is in 172.16.0.0/12 range
func isPrivate172(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31
	}
	return false
}
