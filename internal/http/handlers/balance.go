package handlers

import (
	"net/http"
	"time"
)

type balanceResponse struct {
	Tier              string    `json:"tier"`
	RequestsUsed      int       `json:"requests_used"`
	RequestsLimit     int       `json:"requests_limit"`
	RequestsRemaining int       `json:"requests_remaining"`
	ResetAt           time.Time `json:"reset_at"`
}

// Balance reports the caller's usage inside the trailing window.
func (a *App) Balance(w http.ResponseWriter, r *http.Request) {
	caller := a.caller(r)
	usage, err := a.Limiter.Check(r.Context(), caller.APIKey, caller.Tier, time.Now().UTC())
	if err != nil {
		a.Logger.Error().Err(err).Msg("rate limit check failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to check quota")
		return
	}
	a.json(w, http.StatusOK, balanceResponse{
		Tier:              usage.Tier,
		RequestsUsed:      usage.Used,
		RequestsLimit:     usage.Limit,
		RequestsRemaining: usage.Remaining(),
		ResetAt:           usage.ResetAt,
	})
}
