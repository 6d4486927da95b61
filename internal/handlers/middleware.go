package handlers

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

type contextKey string

const callerKey contextKey = "caller"

// RequireContract answers 404 for any contract address not served here, the
// same signal a client gets when calling an address with no code.
func (h *Handler) RequireContract(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contract, ok := addressParam(r, "contract")
		if !ok || contract != h.contract.Contract() {
			writeError(w, http.StatusNotFound, "contract not deployed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCaller resolves the bearer token to the calling wallet address.
func (h *Handler) RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		claims, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, claims.Address)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFrom(ctx context.Context) common.Address {
	caller, _ := ctx.Value(callerKey).(common.Address)
	return caller
}
