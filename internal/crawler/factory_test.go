package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/unjobsworker/config"
)

func TestCreateSources(t *testing.T) {
	cfg := &config.Config{
		CareersUN:        config.SourceConfig{Enabled: true, URL: "https://careers.un.org/api", MaxPages: 20},
		UNJobs:           config.SourceConfig{Enabled: true, URL: "https://unjobs.org/new", MaxPages: 30},
		UNTalent:         config.SourceConfig{Enabled: false},
		UNTalentRetries:  10,
		UNTalentRetryGap: 5 * time.Second,
		RateLimitBlock:   time.Minute,
	}
	f := &MockFetcher{}

	sources := CreateSources(cfg, f, NewMockCacheService(), DefaultRegionTable())
	require.Len(t, sources, 2)

	careers, ok := sources[0].(*CareersUNSource)
	require.True(t, ok)
	assert.Equal(t, "careersun", careers.Name())
	assert.Equal(t, 20, careers.MaxPages())
	assert.Equal(t, "careersun_rate_limited", careers.CacheKey)
	assert.Equal(t, time.Minute, careers.BlockTime)
	assert.Len(t, careers.dutyStations, 43)

	unjobs, ok := sources[1].(*UNJobsSource)
	require.True(t, ok)
	assert.Equal(t, "unjobs", unjobs.Prefix())
	assert.True(t, unjobs.regions.Match("Analyst - Home Based"))
}

func TestCreateSourcesUNTalentRetryPolicy(t *testing.T) {
	cfg := &config.Config{
		UNTalent:         config.SourceConfig{Enabled: true, URL: "https://untalent.org/jobs/in-europe", MaxPages: 8},
		UNTalentRetries:  10,
		UNTalentRetryGap: 5 * time.Second,
	}

	sources := CreateSources(cfg, &MockFetcher{}, nil, DefaultRegionTable())
	require.Len(t, sources, 1)
	talent := sources[0].(*UNTalentSource)
	assert.Equal(t, 10, talent.retry.MaxAttempts)
	assert.Equal(t, 5*time.Second, talent.retry.Delay)
	assert.True(t, talent.regions.Match("Officer - Amsterdam"))
}

func TestCreateSourcesNoneEnabled(t *testing.T) {
	assert.Empty(t, CreateSources(&config.Config{}, &MockFetcher{}, nil, DefaultRegionTable()))
}
