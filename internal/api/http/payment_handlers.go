package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/keyvend/keyvend/internal/domain/payment"
)

const callbackBodyLimit = 1 << 20

// paymentCallback handles the payment-provider notification. Responses
// mirror the provider contract: 200 once recorded (including duplicate
// redeliveries), 402 when confirmations are still accruing so the
// provider retries, 401 on a wrong path secret.
func (s *Server) paymentCallback(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.logger.Warn().Str("remote", r.RemoteAddr).Msg("unauthorized callback")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, callbackBodyLimit))
	if err != nil {
		respondText(w, http.StatusBadRequest, "Bad request")
		return
	}

	var notice payment.Notice
	if err := json.Unmarshal(body, &notice); err != nil {
		s.logger.Warn().Err(err).Msg("malformed callback payload")
		respondText(w, http.StatusBadRequest, "Bad request")
		return
	}

	switch err := s.paymentSvc.Confirm(r.Context(), notice); {
	case err == nil:
		respondText(w, http.StatusOK, "Callback received")
	case errors.Is(err, payment.ErrUnconfirmedPayment):
		respondText(w, http.StatusPaymentRequired, "Not confirmed")
	case errors.Is(err, payment.ErrInvalidMetadata):
		respondText(w, http.StatusBadRequest, "Bad request")
	default:
		s.logger.Error().Err(err).Str("external_order_id", notice.ExternalOrderID).Msg("callback processing failed")
		respondText(w, http.StatusInternalServerError, "Temporary failure, please retry")
	}
}

func respondText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}
