package crawler

import (
	"sjsage522/unjobsworker/config"
	"sjsage522/unjobsworker/helpers"
	"sjsage522/unjobsworker/logger"
	"sjsage522/unjobsworker/services/cache"
)

// CreateSources builds every enabled source from the configuration
func CreateSources(cfg *config.Config, fetcher helpers.Fetcher, cacheSvc cache.CacheService, table RegionTable) []Source {
	base := func(name string, sc config.SourceConfig) BaseSource {
		return BaseSource{
			SourceName: name,
			URL:        sc.URL,
			PageLimit:  sc.MaxPages,
			Fetcher:    fetcher,
			CacheKey:   name + "_rate_limited",
			CacheSvc:   cacheSvc,
			BlockTime:  cfg.RateLimitBlock,
		}
	}

	var sources []Source
	if cfg.CareersUN.Enabled {
		sources = append(sources, NewCareersUNSource(base("careersun", cfg.CareersUN), table.DutyStationCodes()))
	}
	if cfg.UNJobs.Enabled {
		sources = append(sources, NewUNJobsSource(base("unjobs", cfg.UNJobs), table.UNJobsRegions()))
	}
	if cfg.UNTalent.Enabled {
		sources = append(sources, NewUNTalentSource(base("untalent", cfg.UNTalent), table.UNTalentRegions(), RetryPolicy{
			MaxAttempts: cfg.UNTalentRetries,
			Delay:       cfg.UNTalentRetryGap,
		}))
	}

	for i, s := range sources {
		logger.ForSource(s.Name()).Debug().
			Int("index", i).
			Int("max_pages", s.MaxPages()).
			Msg("Created source")
	}

	return sources
}
