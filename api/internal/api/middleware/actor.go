package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type actorKey struct{}

// ActorHeader names the operator performing a mutation. Authentication is
// upstream; this service only records who the gateway says it is.
const ActorHeader = "X-Actor-ID"

// RequireActor rejects mutating requests without a valid actor id.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		actorID, err := uuid.Parse(r.Header.Get(ActorHeader))
		if err != nil || actorID == uuid.Nil {
			writeError(w, http.StatusBadRequest, "Missing or invalid "+ActorHeader+" header")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey{}, actorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorID returns the actor stored by RequireActor.
func ActorID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(actorKey{}).(uuid.UUID)
	return id, ok
}
