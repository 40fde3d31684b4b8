package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/duomatch/internal/client/api"
	"github.com/dmitrijs2005/duomatch/internal/client/config"
	"github.com/dmitrijs2005/duomatch/internal/client/credentials"
	"github.com/dmitrijs2005/duomatch/internal/client/metadata"
	"github.com/dmitrijs2005/duomatch/internal/linking"
	"github.com/dmitrijs2005/duomatch/internal/logging"
	"github.com/dmitrijs2005/duomatch/internal/profile"
	"github.com/dmitrijs2005/duomatch/internal/session"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// authenticator is the credential store as seen by the commands.
type authenticator interface {
	Register(ctx context.Context, email string, password []byte, nickname string) error
	SignIn(ctx context.Context, email string, password []byte) error
	SignOut(ctx context.Context) error
	Restore(ctx context.Context) error
	UserID() string
	Username() string
}

type bootstrapper interface {
	Run(ctx context.Context) error
	State() session.State
	Refresh(ctx context.Context, userID string) error
	Watch(fn func(session.State)) (cancel func())
}

type inviter interface {
	CreateInvite(ctx context.Context, ownerID string) (string, error)
	AcceptInvite(ctx context.Context, userID, code string) (string, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	auth    authenticator
	boot    bootstrapper
	linking inviter
	pinger  pinger
	reader  *bufio.Reader
	closers []func() error

	mu   sync.Mutex
	mode Mode
}

// NewApp opens the session database, connects to the backend and wires the
// credential store, bootstrapper and linking service together.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewText(os.Stderr, c.LogLevel)

	db, err := metadata.OpenDatabase(ctx, c.SessionDBPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	apiClient, err := api.New(c.ServerEndpointAddr)
	if err != nil {
		db.Close()
		return nil, err
	}

	return newApp(c, logger, db, apiClient), nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB, apiClient *api.GRPCClient) *App {
	creds := credentials.NewStore(apiClient, db, logger)
	loader := profile.NewLoader(apiClient, logger)

	return &App{
		config:  c,
		logger:  logger,
		auth:    creds,
		boot:    session.New(creds, creds, loader, logger),
		linking: linking.NewService(apiClient, loader, logger),
		pinger:  apiClient,
		reader:  bufio.NewReader(os.Stdin),
		closers: []func() error{apiClient.Close, db.Close},
	}
}

// Run resumes a saved session, starts the bootstrapper and the online status
// watcher, and blocks in the REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.auth.Restore(ctx); err != nil {
		a.logger.Warn(ctx, "saved session not restored", "error", err)
	}

	stopWatch := a.boot.Watch(func(st session.State) { printlnFn(renderState(st)) })
	defer stopWatch()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = a.boot.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	}()

	printlnFn("Welcome to DuoMatch CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))

	cancel()
	wg.Wait()
	return nil
}

func (a *App) close() {
	for _, c := range a.closers {
		_ = c()
	}
}

func (a *App) isLoggedIn() bool {
	return a.boot.State().Session != nil
}

func (a *App) getMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.logger.Info(context.Background(), "connectivity changed", "mode", mode)
		printlnFn(fmt.Sprintf("Switched to %s mode", mode))
	}
}

func (a *App) getStatus() string {
	s := ""
	if name := a.auth.Username(); name != "" && a.isLoggedIn() {
		s = name + " "
	}
	s += string(a.getMode())
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// StartOnlineStatusWatcher pings the backend every interval and flips the
// mode between online and offline until ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	a.checkOnline(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.pinger.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}
