package httpapi

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	apppayment "github.com/keyvend/keyvend/internal/application/payment"
)

// Server holds dependencies for HTTP handlers. The only inbound surface
// is the payment-provider callback plus a liveness probe.
type Server struct {
	paymentSvc     *apppayment.Service
	callbackSecret string
	logger         zerolog.Logger
}

func NewServer(paymentSvc *apppayment.Service, callbackSecret string, logger zerolog.Logger) *Server {
	return &Server{
		paymentSvc:     paymentSvc,
		callbackSecret: callbackSecret,
		logger:         logger.With().Str("service", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Post("/callback/{secret}", s.paymentCallback)

	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authorized compares the path secret in constant time.
func (s *Server) authorized(r *http.Request) bool {
	secret := chi.URLParam(r, "secret")
	return subtle.ConstantTimeCompare([]byte(secret), []byte(s.callbackSecret)) == 1
}
