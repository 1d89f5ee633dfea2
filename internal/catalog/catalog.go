package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/structprep/quizd/internal/domain"
)

// listCap bounds the bank listing used to enumerate categories.
const listCap = 5000

const defaultTTL = 10 * time.Minute

// FallbackCategories is the fixed structural-engineering taxonomy used
// when the question bank is unreachable. It may be stale relative to the
// bank and is served as-is.
var FallbackCategories = []string{
	"Concrete",
	"Steel",
	"Wood",
	"Masonry",
	"Seismic",
	"Wind",
	"Foundations",
	"Loads",
	"General",
	"Structural Analysis",
	"Design",
	"Codes",
	"Materials",
}

// QuestionLister is the unfiltered read path into the question bank.
type QuestionLister interface {
	List(ctx context.Context, limit int) ([]domain.Question, error)
}

type Config struct {
	Source QuestionLister
	Redis  redis.UniversalClient
	Prefix string
	// TTL bounds cache staleness, zero keeps the default.
	TTL time.Duration
}

// Service enumerates the distinct categories present in the question bank,
// cached in redis between refreshes. Enumeration never fails: a cold cache
// over an unreachable bank degrades to the fixed taxonomy.
type Service struct {
	source QuestionLister
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewService(c Config) *Service {
	s := &Service{
		source: c.Source,
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.TTL,
	}
	if s.ttl <= 0 {
		s.ttl = defaultTTL
	}

	return s
}

// Categories returns the sorted category list: cache first, then the bank,
// then the fallback taxonomy.
func (s *Service) Categories(ctx context.Context) []string {
	if cached, ok := s.fromCache(ctx); ok {
		return cached
	}

	cats, err := s.fromBank(ctx)
	if err != nil || len(cats) == 0 {
		slog.WarnContext(ctx, "catalog: falling back to fixed taxonomy",
			"error", err,
		)
		cats = slices.Clone(FallbackCategories)
		slices.Sort(cats)
		return cats
	}

	s.cache(ctx, cats)

	return cats
}

func (s *Service) fromBank(ctx context.Context) ([]string, error) {
	questions, err := s.source.List(ctx, listCap)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var cats []string
	for _, q := range questions {
		if q.Category == "" {
			continue
		}
		if _, ok := seen[q.Category]; ok {
			continue
		}
		seen[q.Category] = struct{}{}
		cats = append(cats, q.Category)
	}
	slices.Sort(cats)

	return cats, nil
}

func (s *Service) fromCache(ctx context.Context) ([]string, bool) {
	raw, err := s.redis.Get(ctx, s.cacheKey()).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.WarnContext(ctx, "catalog: cache read failed", "error", err)
		}
		return nil, false
	}

	var cats []string
	if err := json.Unmarshal(raw, &cats); err != nil {
		slog.WarnContext(ctx, "catalog: cache decode failed", "error", err)
		return nil, false
	}

	return cats, true
}

func (s *Service) cache(ctx context.Context, cats []string) {
	raw, err := json.Marshal(cats)
	if err != nil {
		return
	}

	if err := s.redis.Set(ctx, s.cacheKey(), raw, s.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "catalog: cache write failed", "error", err)
	}
}

func (s *Service) cacheKey() string {
	return fmt.Sprintf("%s:categories", s.prefix)
}
