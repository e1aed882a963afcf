package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader содержит ключ идемпотентности, выбранный клиентом.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayHeader выставляется в ответах, взятых из кэша.
	IdempotencyReplayHeader = "Idempotent-Replayed"

	idempotencyProcessing = "processing"
	idempotencyLockTTL    = 30 * time.Second
	maxIdempotencyKeyLen  = 255
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type captureResponseWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *captureResponseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency повторяет сохранённый ответ на запрос с уже использованным ключом идемпотентности.
// Ответы хранятся в Redis. Без клиента Redis middleware пропускает запросы без изменений.
type Idempotency struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewIdempotency создаёт middleware идемпотентности. ttl задаёт время хранения успешных ответов.
func NewIdempotency(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Idempotency {
	m := &Idempotency{ttl: ttl, logger: logger}
	if client != nil {
		m.client = client
	}
	if m.ttl <= 0 {
		m.ttl = 24 * time.Hour
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// Middleware применяется к изменяющим маршрутам после аутентификации.
func (m *Idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyKeyHeader)
		if m.client == nil || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			http.Error(w, "idempotency key is too long", http.StatusBadRequest)
			return
		}

		storageKey := m.storageKey(r, key)
		ctx := context.WithoutCancel(r.Context())

		locked, err := m.client.SetNX(ctx, storageKey, idempotencyProcessing, idempotencyLockTTL).Result()
		if err != nil {
			m.logger.Warn("Idempotency store unavailable", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		if !locked {
			m.replay(ctx, w, r, next, storageKey)
			return
		}

		cw := &captureResponseWriter{ResponseWriter: w}
		next.ServeHTTP(cw, r)

		if cw.status < http.StatusOK || cw.status >= http.StatusMultipleChoices {
			if err := m.client.Del(ctx, storageKey).Err(); err != nil {
				m.logger.Warn("Failed to release idempotency key", zap.Error(err))
			}
			return
		}

		payload, err := json.Marshal(storedResponse{
			Status:      cw.status,
			ContentType: cw.Header().Get("Content-Type"),
			Body:        cw.body.Bytes(),
		})
		if err == nil {
			err = m.client.Set(ctx, storageKey, payload, m.ttl).Err()
		}
		if err != nil {
			m.logger.Warn("Failed to store idempotent response", zap.Error(err))
		}
	})
}

func (m *Idempotency) replay(ctx context.Context, w http.ResponseWriter, r *http.Request, next http.Handler, storageKey string) {
	value, err := m.client.Get(ctx, storageKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			http.Error(w, "request with this idempotency key is in progress", http.StatusConflict)
			return
		}
		m.logger.Warn("Idempotency store unavailable", zap.Error(err))
		next.ServeHTTP(w, r)
		return
	}

	if string(value) == idempotencyProcessing {
		http.Error(w, "request with this idempotency key is in progress", http.StatusConflict)
		return
	}

	var stored storedResponse
	if err := json.Unmarshal(value, &stored); err != nil {
		m.logger.Warn("Corrupted idempotent response", zap.String("key", storageKey), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(IdempotencyReplayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func (m *Idempotency) storageKey(r *http.Request, key string) string {
	owner := "anonymous"
	if p, ok := GetPrincipalFromContext(r.Context()); ok {
		owner = fmt.Sprintf("%s:%d", p.Role, p.ID)
	}
	return fmt.Sprintf("idempotency:%s:%s %s:%s", owner, r.Method, r.URL.Path, key)
}
