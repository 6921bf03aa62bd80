package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"sjsage522/unjobsworker/helpers"
	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/logger"
	"sjsage522/unjobsworker/pkg/errors"
)

// Indexer makes the jobs of a run searchable
type Indexer interface {
	Index(ctx context.Context, jobs []crawler.Job) error
}

const indexMapping = `{
	"mappings": {
		"properties": {
			"uuid": {"type": "keyword"},
			"source": {"type": "keyword"},
			"title": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"url": {"type": "keyword"},
			"organization": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"description": {"type": "text"},
			"description_text": {"type": "text"},
			"updatedAt": {"type": "date"},
			"category": {"type": "keyword"},
			"reasoning": {"type": "text"},
			"indexed_at": {"type": "date"}
		}
	}
}`

type document struct {
	crawler.Job
	Source          string    `json:"source"`
	DescriptionText string    `json:"description_text,omitempty"`
	IndexedAt       time.Time `json:"indexed_at"`
}

func newDocument(job crawler.Job, indexedAt time.Time) document {
	return document{
		Job:             job,
		Source:          crawler.Prefix(job.Identity),
		DescriptionText: html.UnescapeString(helpers.StripHTML(job.Description)),
		IndexedAt:       indexedAt,
	}
}

// ElasticsearchIndexer bulk-indexes jobs keyed by identity, so re-indexing a
// job overwrites its previous document
type ElasticsearchIndexer struct {
	client    *elasticsearch.Client
	indexName string
	now       func() time.Time
}

// NewElasticsearchIndexer creates the client and checks the cluster answers
func NewElasticsearchIndexer(ctx context.Context, addresses []string, indexName string) (*ElasticsearchIndexer, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, errors.NewConfiguration("failed to create elasticsearch client", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, errors.NewNetwork("elasticsearch", "cluster unreachable", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.NewNetwork("elasticsearch", "info failed: "+res.Status(), nil)
	}

	return &ElasticsearchIndexer{
		client:    client,
		indexName: indexName,
		now:       time.Now,
	}, nil
}

// EnsureIndex creates the index with its mapping unless it already exists
func (i *ElasticsearchIndexer) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.indexName}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.NewNetwork("elasticsearch", "failed to check index", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = i.client.Indices.Create(
		i.indexName,
		i.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		i.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return errors.NewNetwork("elasticsearch", "failed to create index", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.NewNetwork("elasticsearch", "create index failed: "+res.Status(), nil)
	}
	return nil
}

// Index sends jobs in one bulk request. Per-document failures are logged and
// counted; only a failed request is an error.
func (i *ElasticsearchIndexer) Index(ctx context.Context, jobs []crawler.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	log := logger.ForIndexer()
	indexedAt := i.now().UTC()

	var buf bytes.Buffer
	for _, job := range jobs {
		meta, err := json.Marshal(map[string]any{
			"index": map[string]any{"_index": i.indexName, "_id": job.Identity},
		})
		if err != nil {
			return errors.NewParsing("elasticsearch", "failed to encode bulk meta", err)
		}
		doc, err := json.Marshal(newDocument(job, indexedAt))
		if err != nil {
			log.Warn().Err(err).Str("uuid", job.Identity).Msg("Skipping job that cannot be encoded")
			continue
		}
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	res, err := i.client.Bulk(bytes.NewReader(buf.Bytes()), i.client.Bulk.WithContext(ctx))
	if err != nil {
		return errors.NewNetwork("elasticsearch", "bulk request failed", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.NewNetwork("elasticsearch", "bulk failed: "+res.Status(), nil)
	}

	var bulkRes struct {
		Errors bool `json:"errors"`
		Items  []struct {
			Index struct {
				ID     string `json:"_id"`
				Status int    `json:"status"`
				Error  struct {
					Type   string `json:"type"`
					Reason string `json:"reason"`
				} `json:"error"`
			} `json:"index"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return errors.NewParsing("elasticsearch", "failed to parse bulk response", err)
	}

	failed := 0
	if bulkRes.Errors {
		for _, item := range bulkRes.Items {
			if item.Index.Status >= 400 {
				failed++
				log.Warn().
					Str("uuid", item.Index.ID).
					Str("type", item.Index.Error.Type).
					Msg(fmt.Sprintf("Bulk index error: %s", item.Index.Error.Reason))
			}
		}
	}
	log.Info().Str("index", i.indexName).Int("jobs", len(jobs)).Int("failed", failed).Msg("Indexed jobs")
	return nil
}
