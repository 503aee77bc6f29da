// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
)

// HeaderIdempotencyKey is the request header naming a retry-safe action.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplayed marks a response served from the replay cache.
const HeaderIdempotentReplayed = "Idempotent-Replayed"

type storedResponse struct {
	contentType string
	body        []byte
	status      int
	done        bool
}

type bodyRecorder struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// IdempotencyStore remembers responses per Idempotency-Key.
type IdempotencyStore struct {
	cache *cache.Cache
}

// NewIdempotencyStore creates a store that keeps responses for ttl.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{cache: cache.New(ttl, 2*ttl)}
}

// Len reports how many keys are remembered.
func (s *IdempotencyStore) Len() int {
	return s.cache.ItemCount()
}

// Idempotency replays the first response for a repeated POST carrying the
// same Idempotency-Key. A repeat that arrives while the first request is
// still running gets 409. Server errors are not remembered so the action
// can be retried.
func Idempotency(store *IdempotencyStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			key := req.Header.Get(HeaderIdempotencyKey)
			if key == "" || req.Method != http.MethodPost {
				return next(c)
			}
			cacheKey := req.Method + " " + req.URL.Path + " " + key

			if err := store.cache.Add(cacheKey, &storedResponse{}, cache.DefaultExpiration); err != nil {
				cached, _ := store.cache.Get(cacheKey)
				stored, _ := cached.(*storedResponse)
				if stored == nil || !stored.done {
					return c.JSON(http.StatusConflict, map[string]any{
						"success": false,
						"error":   "request_in_progress",
					})
				}
				c.Response().Header().Set(HeaderIdempotentReplayed, "true")
				return c.Blob(stored.status, stored.contentType, stored.body)
			}

			res := c.Response()
			rec := &bodyRecorder{ResponseWriter: res.Writer}
			res.Writer = rec
			err := next(c)
			res.Writer = rec.ResponseWriter

			if err != nil || res.Status >= http.StatusInternalServerError {
				store.cache.Delete(cacheKey)
				return err
			}
			store.cache.Set(cacheKey, &storedResponse{
				contentType: res.Header().Get(echo.HeaderContentType),
				body:        rec.buf.Bytes(),
				status:      res.Status,
				done:        true,
			}, cache.DefaultExpiration)
			return nil
		}
	}
}
