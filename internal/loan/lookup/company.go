// internal/loan/lookup/company.go
package lookup

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"loangenius/internal/common/logger"
	"loangenius/internal/common/metrics"
	"loangenius/internal/common/partner"
)

// CompanySource is the backend half of employer autocomplete.
type CompanySource interface {
	SearchCompanies(ctx context.Context, query string) ([]partner.Company, error)
}

type CompanyOptions struct {
	Debounce       time.Duration
	MinQueryLength int
	CacheSize      int
	CacheTTL       time.Duration
}

// CompanySearch is a debounced, cached employer autocomplete. It never fails
// on transport errors: the applicant can always type the name by hand.
type CompanySearch struct {
	debouncer *Debouncer[string, []partner.Company]
	cache     *expirable.LRU[string, []partner.Company]
	minLen    int
	logger    logger.Logger
}

func NewCompanySearch(src CompanySource, opts CompanyOptions, log logger.Logger) *CompanySearch {
	if opts.MinQueryLength < 1 {
		opts.MinQueryLength = 2
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &CompanySearch{
		debouncer: NewDebouncer[string, []partner.Company](opts.Debounce, src.SearchCompanies),
		cache:     expirable.NewLRU[string, []partner.Company](opts.CacheSize, nil, opts.CacheTTL),
		minLen:    opts.MinQueryLength,
		logger:    log.WithFields(map[string]interface{}{"lookup": "company"}),
	}
}

// Search returns suggestions for query. Short queries return nothing without
// I/O. A superseded call returns ErrSuperseded and its result must be dropped.
func (s *CompanySearch) Search(ctx context.Context, query string) ([]partner.Company, error) {
	q := strings.TrimSpace(query)
	if len([]rune(q)) < s.minLen {
		s.debouncer.Cancel()
		return []partner.Company{}, nil
	}

	key := strings.ToLower(q)
	if cached, ok := s.cache.Get(key); ok {
		s.debouncer.Cancel()
		metrics.LookupRequests.WithLabelValues("company", "cache").Inc()
		return slices.Clone(cached), nil
	}

	companies, err := s.debouncer.Do(ctx, q)
	switch {
	case errors.Is(err, ErrSuperseded):
		metrics.LookupRequests.WithLabelValues("company", "superseded").Inc()
		return nil, err
	case err != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		metrics.LookupRequests.WithLabelValues("company", "failed").Inc()
		s.logger.Warn("Company search failed, falling back to manual entry", map[string]interface{}{
			"query": q,
			"error": err.Error(),
		})
		return []partner.Company{}, nil
	}

	if companies == nil {
		companies = []partner.Company{}
	}
	s.cache.Add(key, companies)
	metrics.LookupRequests.WithLabelValues("company", "ok").Inc()
	return slices.Clone(companies), nil
}
