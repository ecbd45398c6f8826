package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"ringminter/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	submissionCacheVersionKey = "ringminter:submissions:version"
	submissionCacheKeyPrefix  = "ringminter:submissions:v"
	defaultCacheTTL           = time.Hour
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedJournal serves journal queries from redis. Keys embed a version
// counter that every write bumps, so stale pages are never read back.
type CachedJournal struct {
	*Journal
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedJournal(base *Journal, cfg CacheConfig) (*CachedJournal, error) {
	if base == nil {
		return nil, errors.New("base journal is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedJournal{Journal: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedJournal{Journal: base, cache: client, ttl: cfg.TTL}, nil
}

func (r *CachedJournal) RecordSubmission(ctx context.Context, submission domain.Submission) error {
	return r.UpsertSubmissions(ctx, []domain.Submission{submission})
}

func (r *CachedJournal) UpsertSubmissions(ctx context.Context, submissions []domain.Submission) error {
	if err := r.Journal.UpsertSubmissions(ctx, submissions); err != nil {
		return err
	}
	if len(submissions) > 0 {
		r.invalidate(ctx)
	}
	return nil
}

func (r *CachedJournal) QuerySubmissions(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error) {
	if r.cache == nil {
		return r.Journal.QuerySubmissions(ctx, filter)
	}
	version, ok := r.cacheVersion(ctx)
	if !ok {
		return r.Journal.QuerySubmissions(ctx, filter)
	}
	key := submissionCacheKey(version, filter)
	if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
		var submissions []domain.Submission
		if err := json.Unmarshal([]byte(cached), &submissions); err == nil {
			return submissions, nil
		}
	}

	submissions, err := r.Journal.QuerySubmissions(ctx, filter)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(submissions)
	if err != nil {
		return submissions, nil
	}
	_ = r.cache.Set(ctx, key, payload, r.ttl).Err()
	return submissions, nil
}

func (r *CachedJournal) Close() error {
	var cacheErr error
	if r.cache != nil {
		cacheErr = r.cache.Close()
	}
	return errors.Join(r.Journal.Close(), cacheErr)
}

func (r *CachedJournal) cacheVersion(ctx context.Context) (string, bool) {
	version, err := r.cache.Get(ctx, submissionCacheVersionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

func (r *CachedJournal) invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Incr(ctx, submissionCacheVersionKey).Err()
}

func submissionCacheKey(version string, filter domain.SubmissionFilter) string {
	var b strings.Builder
	b.Grow(128)
	b.WriteString(submissionCacheKeyPrefix)
	b.WriteString(version)
	b.WriteString(":chain=")
	if filter.ChainID != nil {
		b.WriteString(strconv.FormatUint(*filter.ChainID, 10))
	} else {
		b.WriteString("all")
	}
	writePart(&b, "fn", filter.Function)
	writePart(&b, "status", string(filter.Status))
	writePart(&b, "from", strings.ToLower(filter.From))
	writePart(&b, "tx", strings.ToLower(filter.TxHash))
	b.WriteString(":limit=")
	b.WriteString(strconv.Itoa(filter.NormalizedLimit()))
	return b.String()
}

func writePart(b *strings.Builder, name, value string) {
	b.WriteString(":")
	b.WriteString(name)
	b.WriteString("=")
	if value == "" {
		value = "any"
	}
	b.WriteString(value)
}
