// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/platform/httpx"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rs/zerolog"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "video_id":       {"type": "long"},
      "sentence_id":    {"type": "long"},
      "sentence_index": {"type": "integer"},
      "text":           {"type": "text"},
      "start_time":     {"type": "float"},
      "end_time":       {"type": "float"},
      "video_title":    {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "video_level":    {"type": "keyword"},
      "video_language": {"type": "keyword"},
      "category_id":    {"type": "long"}
    }
  }
}`

// ESConfig addresses the cluster.
type ESConfig struct {
	URL      string
	Index    string
	Username string
	Password string
}

// ESIndexer writes sentence documents to Elasticsearch.
type ESIndexer struct {
	es     *elasticsearch.Client
	index  string
	logger zerolog.Logger

	mu      sync.Mutex
	ensured bool
}

// NewESIndexer builds the client without contacting the cluster.
func NewESIndexer(cfg ESConfig) (*ESIndexer, error) {
	if cfg.URL == "" {
		return nil, errors.New("search: elasticsearch url is empty")
	}
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  strings.Split(cfg.URL, ","),
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: 1,
		Transport:  httpx.NewClient("elasticsearch", 0).Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("search: client: %w", err)
	}
	return &ESIndexer{es: es, index: cfg.Index, logger: log.WithComponent("search")}, nil
}

// unavailable wraps a transport failure.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func readError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	err := fmt.Errorf("%s: status %d: %s", op, res.StatusCode, strings.TrimSpace(string(body)))
	switch res.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("search: %w", err)
}

// EnsureIndex creates the index with its mapping when missing.
func (i *ESIndexer) EnsureIndex(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ensured {
		return nil
	}

	res, err := i.es.Indices.Exists([]string{i.index}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return unavailable("index exists", err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		res, err := i.es.Indices.Create(i.index,
			i.es.Indices.Create.WithContext(ctx),
			i.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		)
		if err != nil {
			return unavailable("create index", err)
		}
		defer res.Body.Close()
		// 400 resource_already_exists_exception from a concurrent creator is fine.
		if res.IsError() && !strings.Contains(readBody(res), "resource_already_exists_exception") {
			return fmt.Errorf("search: create index %s: status %d", i.index, res.StatusCode)
		}
	default:
		return readError("index exists", res)
	}
	i.ensured = true
	return nil
}

// Ping reports whether the cluster answers.
func (i *ESIndexer) Ping(ctx context.Context) error {
	res, err := i.es.Ping(i.es.Ping.WithContext(ctx))
	if err != nil {
		return unavailable("ping", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return readError("ping", res)
	}
	return nil
}

func readBody(res *esapi.Response) string {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return string(b)
}

// DeleteVideo removes every document of the video and refreshes the index.
func (i *ESIndexer) DeleteVideo(ctx context.Context, videoID int64) error {
	query := fmt.Sprintf(`{"query":{"term":{"video_id":%d}}}`, videoID)
	res, err := i.es.DeleteByQuery([]string{i.index}, strings.NewReader(query),
		i.es.DeleteByQuery.WithContext(ctx),
		i.es.DeleteByQuery.WithRefresh(true),
		i.es.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return unavailable("delete by query", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return readError("delete by query", res)
	}
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// ReindexVideo deletes the video's documents, then bulk-indexes docs with
// deterministic ids. It returns the number of documents written.
func (i *ESIndexer) ReindexVideo(ctx context.Context, videoID int64, docs []Document) (int, error) {
	if err := i.EnsureIndex(ctx); err != nil {
		return 0, err
	}
	if err := i.DeleteVideo(ctx, videoID); err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, d := range docs {
		meta := map[string]map[string]string{"index": {"_index": i.index, "_id": d.DocID()}}
		if err := enc.Encode(meta); err != nil {
			return 0, err
		}
		if err := enc.Encode(d); err != nil {
			return 0, err
		}
	}

	res, err := i.es.Bulk(&body,
		i.es.Bulk.WithContext(ctx),
		i.es.Bulk.WithIndex(i.index),
		i.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return 0, unavailable("bulk", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, readError("bulk", res)
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return 0, fmt.Errorf("search: decode bulk response: %w", err)
	}
	indexed := len(docs)
	if br.Errors {
		failed := 0
		var first string
		for _, item := range br.Items {
			for _, r := range item {
				if r.Error != nil {
					failed++
					if first == "" {
						first = r.ID + ": " + r.Error.Type + ": " + r.Error.Reason
					}
				}
			}
		}
		indexed -= failed
		if failed > 0 {
			return indexed, fmt.Errorf("search: %d of %d documents rejected (first: %s)", failed, len(docs), first)
		}
	}

	i.logger.Debug().
		Int64(log.FieldVideoID, videoID).
		Int("documents", indexed).
		Str(log.FieldEvent, "search.reindexed").
		Msg("video reindexed")
	return indexed, nil
}

var _ Indexer = (*ESIndexer)(nil)
