// Package identity translates between user handles and numeric ids.
//
// Answers that are already known, or that can be read off the input, never
// cost a request. Handles are looked up by requesting /{handle} and reading
// the id from the profile URL the site redirects to.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/IshaanNene/fetgoat/internal/observability"
	"github.com/IshaanNene/fetgoat/internal/session"
	"github.com/IshaanNene/fetgoat/internal/types"
)

// Client is the part of a session the resolver needs.
type Client interface {
	Get(ctx context.Context, path string, form url.Values) (*types.Response, error)
	UserID() int64
	Nickname() string
	Markers() session.Markers
}

// Resolver maps Who values to numeric ids.
type Resolver struct {
	client  Client
	cache   *Cache
	metrics *observability.Metrics
	logger  *slog.Logger

	mu    sync.Mutex
	ids   map[string]int64
	nicks map[int64]string
}

// NewResolver creates a resolver over client. A nil cache means no
// persistence; nil metrics get a private set.
func NewResolver(client Client, cache *Cache, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	if cache == nil {
		cache = NewNullCache()
	}
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	return &Resolver{
		client:  client,
		cache:   cache,
		metrics: metrics,
		logger:  logger.With("component", "identity"),
		ids:     make(map[string]int64),
		nicks:   make(map[int64]string),
	}
}

// Resolve returns the numeric id of who.
func (r *Resolver) Resolve(ctx context.Context, who Who) (int64, error) {
	switch {
	case who.IsSelf():
		id := r.client.UserID()
		if id <= 0 {
			return 0, types.ErrNotLoggedIn
		}
		if nick := r.client.Nickname(); nick != "" {
			r.Remember(nick, id)
		}
		return id, nil
	case who.kind == kindID:
		if who.id <= 0 {
			return 0, fmt.Errorf("%w: id %d", types.ErrInvalidWho, who.id)
		}
		return who.id, nil
	}

	handle := who.handle
	if handle == "" || strings.ContainsAny(handle, "/?# ") {
		return 0, fmt.Errorf("%w: handle %q", types.ErrInvalidWho, handle)
	}
	key := strings.ToLower(handle)

	r.mu.Lock()
	id, ok := r.ids[key]
	r.mu.Unlock()
	if ok {
		r.metrics.IdentityCacheHits.Add(1)
		return id, nil
	}

	fetched := false
	data, err := r.cache.GetSet(ctx, cacheKey(key), func(ctx context.Context) ([]byte, error) {
		fetched = true
		id, err := r.lookup(ctx, handle)
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(id, 10)), nil
	}, r.cache.TTL())
	if err != nil {
		return 0, err
	}
	if !fetched {
		r.metrics.IdentityCacheHits.Add(1)
	}

	id, err = strconv.ParseInt(string(data), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("corrupt identity cache entry for %q: %q", handle, data)
	}
	r.Remember(handle, id)
	return id, nil
}

func (r *Resolver) lookup(ctx context.Context, handle string) (int64, error) {
	r.metrics.IdentityLookups.Add(1)

	resp, err := r.client.Get(ctx, "/"+url.PathEscape(handle), nil)
	if err != nil {
		return 0, fmt.Errorf("resolve %q: %w", handle, err)
	}
	if resp.StatusCode == http.StatusNotFound || r.client.Markers().IsHomePage(resp.Body) {
		return 0, fmt.Errorf("resolve %q: %w", handle, types.ErrNotFound)
	}

	final := resp.FinalPathSegment()
	id, ok := numeric(final)
	if !ok || id <= 0 {
		return 0, fmt.Errorf("resolve %q: landed on %s: %w", handle, resp.FinalURL, types.ErrNotFound)
	}
	r.logger.Debug("resolved handle", "handle", handle, "id", id)
	return id, nil
}

// NicknameByID returns the nickname of user id, reading it from the
// profile page when it is not already known.
func (r *Resolver) NicknameByID(ctx context.Context, id int64) (string, error) {
	if id <= 0 {
		return "", fmt.Errorf("%w: id %d", types.ErrInvalidWho, id)
	}

	r.mu.Lock()
	nick, ok := r.nicks[id]
	r.mu.Unlock()
	if ok {
		r.metrics.IdentityCacheHits.Add(1)
		return nick, nil
	}

	r.metrics.IdentityLookups.Add(1)
	resp, err := r.client.Get(ctx, "/users/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return "", fmt.Errorf("nickname of %d: %w", id, err)
	}
	markers := r.client.Markers()
	if resp.StatusCode == http.StatusNotFound || markers.IsHomePage(resp.Body) {
		return "", fmt.Errorf("nickname of %d: %w", id, types.ErrNotFound)
	}
	nick, ok = markers.FindNickname(resp.Body)
	if !ok {
		return "", fmt.Errorf("nickname of %d: %w", id, types.ErrUnavailable)
	}
	r.Remember(nick, id)
	return nick, nil
}

// Remember records a handle and id seen elsewhere, such as in a listing
// row, so later lookups of either are free.
func (r *Resolver) Remember(handle string, id int64) {
	if handle == "" || id <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[strings.ToLower(handle)] = id
	r.nicks[id] = handle
}

// cacheKey hashes a handle into a key safe for any store.
func cacheKey(handle string) string {
	sum := sha256.Sum256([]byte("handle:" + handle))
	return hex.EncodeToString(sum[:])
}

// Close flushes the persistent cache.
func (r *Resolver) Close() error {
	return r.cache.Close()
}
