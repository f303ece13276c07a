// Package api is the HTTP façade over the ledger engine. It owns request
// decoding, decimal-to-minor-unit conversion, error-to-status mapping and
// the middleware chain; it performs no balance logic of its own.
package api

import (
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"ledger-api/ledger"
)

// Config carries the façade knobs. Zero-valued rate limits fall back to
// the defaults below; an empty JWTSecret disables authentication.
type Config struct {
	JWTSecret        string
	IPRateLimit      int
	AccountRateLimit int
}

const (
	defaultIPRateLimit      = 166 // ~10k requests per minute
	defaultAccountRateLimit = 5
)

type App struct {
	Engine    *ledger.Engine
	Limiters  map[string]*Limiter
	jwtSecret string
}

func NewApp(engine *ledger.Engine, cfg Config) *App {
	if cfg.IPRateLimit <= 0 {
		cfg.IPRateLimit = defaultIPRateLimit
	}
	if cfg.AccountRateLimit <= 0 {
		cfg.AccountRateLimit = defaultAccountRateLimit
	}

	ipLimiter := NewLimiter(cfg.IPRateLimit, func(r *http.Request) string {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	})
	accountLimiter := NewLimiter(cfg.AccountRateLimit, func(r *http.Request) string {
		return ledger.NormalizeEmail(mux.Vars(r)["email"])
	})

	return &App{
		Engine: engine,
		Limiters: map[string]*Limiter{
			"ip":      ipLimiter,
			"account": accountLimiter,
		},
		jwtSecret: cfg.JWTSecret,
	}
}

func (app *App) RateLimit(handler http.HandlerFunc, name string) http.HandlerFunc {
	limiter, ok := app.Limiters[name]
	if !ok {
		panic("limiter " + name + " does not exist")
	}
	return RateLimit(handler, limiter)
}

// Router builds the route table. Paths match what the presentation layer
// calls; /health stays outside the authenticated subrouters.
func (app *App) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(RequestID)

	r.HandleFunc("/health", app.Health()).Methods(http.MethodGet)

	account := r.PathPrefix("/account").Subrouter()
	account.Use(app.Authenticate)
	account.HandleFunc("/create", app.CreateAccount()).Methods(http.MethodPost)
	account.HandleFunc("/deposit", app.Deposit()).Methods(http.MethodPost)
	account.HandleFunc("/balance/{email}", app.GetBalance()).Methods(http.MethodGet)

	transaction := r.PathPrefix("/transaction").Subrouter()
	transaction.Use(app.Authenticate)
	transaction.HandleFunc("/", app.CreateTransaction()).Methods(http.MethodPost)
	transaction.HandleFunc("/recent/{email}", app.RecentTransactions()).Methods(http.MethodGet)

	return r
}
