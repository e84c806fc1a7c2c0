package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"leads-backend/internal/apperr"
	"leads-backend/internal/middleware"
	"leads-backend/internal/models"

	"github.com/gorilla/mux"
)

// actorFrom reads the principal Authenticate put on the context
func actorFrom(r *http.Request) (models.Actor, error) {
	a, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return a, apperr.Unauthorized("authentication required")
	}
	return a, nil
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id", "must be a positive integer")
	}
	return id, nil
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation(key, "must be a non-negative integer")
	}
	return n, nil
}

// queryList accepts both ?status=a,b and ?status=a&status=b
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
