package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/budgetapp/budget-api/internal/config"
	"github.com/budgetapp/budget-api/internal/domain/models"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const Version = "1.0.0"

type AuthService interface {
	Register(ctx context.Context, email, username, password string) (models.User, error)
	Login(ctx context.Context, username, password string) (models.Token, error)
	Authenticate(ctx context.Context, token string) (models.User, error)
	DeleteAccount(ctx context.Context, user models.User) error
}

type TransactionService interface {
	Create(ctx context.Context, owner models.User, in models.NewTransaction) (models.Transaction, error)
	List(ctx context.Context, owner models.User, category *models.Category, skip, limit int) ([]models.Transaction, error)
	Get(ctx context.Context, owner models.User, id int64) (models.Transaction, error)
	Update(ctx context.Context, owner models.User, id int64, upd models.TransactionUpdate) (models.Transaction, error)
	Delete(ctx context.Context, owner models.User, id int64) error
	Summarize(ctx context.Context, owner models.User) (models.Summary, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type APIServer struct {
	config       *config.Config
	logger       *slog.Logger
	server       *http.Server
	auth         AuthService
	transactions TransactionService
	health       HealthChecker
	validate     *validator.Validate
}

func New(
	config *config.Config,
	logger *slog.Logger,
	auth AuthService,
	transactions TransactionService,
	health HealthChecker,
) *APIServer {
	s := &APIServer{
		config:       config,
		logger:       logger,
		auth:         auth,
		transactions: transactions,
		health:       health,
		validate:     newValidator(),
		server: &http.Server{
			Addr:         config.Addr(),
			ReadTimeout:  config.HTTP.ReadTimeout,
			WriteTimeout: config.HTTP.WriteTimeout,
			IdleTimeout:  config.HTTP.IdleTimeout,
		},
	}
	s.server.Handler = s.configureRouter()

	return s
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting server", slog.String("addr", s.server.Addr))

	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")
	return s.server.Shutdown(ctx)
}

// Handler returns the fully wrapped HTTP handler.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) configureRouter() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", s.rootHandler()).Methods(http.MethodGet)
	router.HandleFunc("/health", s.healthHandler()).Methods(http.MethodGet)
	router.HandleFunc("/ready", s.readyHandler()).Methods(http.MethodGet)

	authRouter := router.PathPrefix("/api/auth").Subrouter()
	authRouter.HandleFunc("/register", s.registerHandler()).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", s.loginHandler()).Methods(http.MethodPost)
	authRouter.HandleFunc("/me", s.authenticate(s.meHandler())).Methods(http.MethodGet)
	authRouter.HandleFunc("/me", s.authenticate(s.deleteAccountHandler())).Methods(http.MethodDelete)

	txRouter := router.PathPrefix("/api/transactions").Subrouter()
	for _, path := range []string{"", "/"} {
		txRouter.HandleFunc(path, s.authenticate(s.createTransactionHandler())).Methods(http.MethodPost)
		txRouter.HandleFunc(path, s.authenticate(s.listTransactionsHandler())).Methods(http.MethodGet)
	}
	txRouter.HandleFunc("/stats/summary", s.authenticate(s.summaryHandler())).Methods(http.MethodGet)
	txRouter.HandleFunc("/{id:[0-9]+}", s.authenticate(s.getTransactionHandler())).Methods(http.MethodGet)
	txRouter.HandleFunc("/{id:[0-9]+}", s.authenticate(s.updateTransactionHandler())).Methods(http.MethodPut)
	txRouter.HandleFunc("/{id:[0-9]+}", s.authenticate(s.deleteTransactionHandler())).Methods(http.MethodDelete)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   s.config.HTTP.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})

	var handler http.Handler = router
	handler = corsHandler(handler)
	handler = s.recoverer(handler)
	handler = s.requestLogger(handler)
	handler = requestID(handler)

	return handler
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if ns, ok := field.Interface().(nullableString); ok && ns.Set && !ns.Null {
			return ns.Value
		}
		return nil
	}, nullableString{})
	return v
}

func (s *APIServer) rootHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Welcome to the Budget API!",
			"version": Version,
		})
	}
}

func (s *APIServer) healthHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

func (s *APIServer) readyHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.health != nil {
			if err := s.health.Ping(r.Context()); err != nil {
				s.logger.Error("readiness check failed",
					slog.String("request_id", getRequestID(r.Context())),
					slog.Any("error", err),
				)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
