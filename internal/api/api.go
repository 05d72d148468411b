package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/oauth2"

	"github.com/susu3304/expensesplitter/internal/config"
	"github.com/susu3304/expensesplitter/internal/splitter"
	"github.com/susu3304/expensesplitter/internal/ui"
)

// Splitter is the controller surface the HTTP adapter drives.
type Splitter interface {
	Board() *ui.Board
	Status() splitter.Status
	Connect(ctx context.Context) (common.Address, error)
	Disconnect(ctx context.Context) error
	LoadContract(ctx context.Context, address string) (common.Address, error)
	Refresh(ctx context.Context) (*splitter.Snapshot, error)
	RecordExpense(ctx context.Context, description, amount string) (*splitter.TxResult, error)
	AddParticipant(ctx context.Context, address string) (*splitter.TxResult, error)
	Contribute(ctx context.Context, amount string) (*splitter.TxResult, error)
	Settle(ctx context.Context) (*splitter.TxResult, error)
	ReportUnexpected(v any)
}

// History lists recorded transactions. It is optional.
type History interface {
	ListTransactions(ctx context.Context, chainID uint64, contract common.Address, limit int) ([]splitter.TxRecord, error)
}

type API struct {
	router      *mux.Router
	ctrl        Splitter
	history     History
	gatherer    prometheus.Gatherer
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
	limiter     *rateLimiter
	log         *slog.Logger
	server      *http.Server

	// discordAPI is the Discord REST base URL, replaced in tests.
	discordAPI string
}

type Options struct {
	// History may be nil when no database is configured.
	History  History
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

func New(cfg *config.Config, ctrl Splitter, opts Options) *API {
	api := &API{
		router:     mux.NewRouter(),
		ctrl:       ctrl,
		history:    opts.History,
		gatherer:   opts.Gatherer,
		config:     cfg,
		jwtSecret:  []byte(cfg.JWTSecret),
		limiter:    newRateLimiter(cfg.RateRPS, cfg.RateBurst, 10*time.Minute),
		log:        opts.Logger,
		discordAPI: "https://discord.com/api",
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify", "guilds"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}
	if api.log == nil {
		api.log = slog.Default()
	}
	if api.gatherer == nil {
		api.gatherer = prometheus.DefaultGatherer
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.router.Use(a.recoverMiddleware)

	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Public endpoints
	a.router.HandleFunc("/api/view", a.handleView).Methods("GET")
	a.router.HandleFunc("/api/history", a.handleHistory).Methods("GET")
	a.router.HandleFunc("/api/contract/refresh", a.handleRefresh).Methods("POST")
	a.router.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	// Web interface
	a.router.HandleFunc("/", a.handleWebInterface).Methods("GET")
	a.router.HandleFunc("/app.js", a.handleScript).Methods("GET")

	// Write endpoints
	write := a.router.PathPrefix("/api").Subrouter()
	write.Use(a.originMiddleware)
	write.Use(a.rateLimitMiddleware)
	if a.config.OAuthEnabled() {
		write.Use(a.authMiddleware)
	}

	write.HandleFunc("/wallet/connect", a.handleConnect).Methods("POST")
	write.HandleFunc("/wallet/disconnect", a.handleDisconnect).Methods("POST")
	write.HandleFunc("/contract", a.handleLoadContract).Methods("POST")
	write.HandleFunc("/expenses", a.handleRecordExpense).Methods("POST")
	write.HandleFunc("/participants", a.handleAddParticipant).Methods("POST")
	write.HandleFunc("/contributions", a.handleContribute).Methods("POST")
	write.HandleFunc("/settlements", a.handleSettle).Methods("POST")
}

// Handler returns the router wrapped with CORS. Only the web UI origin and
// the server's own origin are allowed.
func (a *API) Handler() http.Handler {
	corsOptions := cors.Options{
		AllowOriginRequestFunc: a.originAllowed,
		AllowedMethods:         []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:         []string{"Authorization", "Content-Type"},
		AllowCredentials:       false,
	}
	return cors.New(corsOptions).Handler(a.router)
}

func (a *API) Start() error {
	a.server = &http.Server{
		Addr:              a.config.WebBind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.log.Info("API server listening", "url", "http://"+a.config.WebBind)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *API) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// originAllowed accepts the configured web UI origin and same-origin requests.
func (a *API) originAllowed(r *http.Request, origin string) bool {
	if a.config.WebUIBaseURL != "" && strings.EqualFold(origin, a.config.WebUIBaseURL) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host != "" && strings.EqualFold(u.Host, r.Host)
}

// originMiddleware refuses writes started from another site's page. Without
// login the server only answers to loopback host names, so a rebound DNS name
// cannot pass as same-origin. Requests without an Origin header come from
// non-browser clients.
func (a *API) originMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if (origin != "" && !a.originAllowed(r, origin)) || (!a.config.OAuthEnabled() && !loopbackHost(r.Host)) {
			writeJSON(w, http.StatusForbidden, opResponse{Kind: "forbidden", Message: "Request origin not allowed"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loopbackHost(host string) bool {
	return config.IsLoopback(host) || config.IsLoopback(host+":0")
}

// recoverMiddleware turns a panic in any handler into the generic unexpected
// error on the board.
func (a *API) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				a.ctrl.ReportUnexpected(v)
				writeJSON(w, http.StatusInternalServerError, opResponse{
					Kind:    "unexpected",
					Message: "An unexpected error occurred",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
