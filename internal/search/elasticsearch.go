package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/djeeyo/nmreggae/config"
	"github.com/djeeyo/nmreggae/internal/models"
	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// maxResults caps a single search page
const maxResults = 100

// searchFields are matched by free-text queries, event name boosted
var searchFields = []string{"event_name^3", "venue^2", "city", "type"}

// ElasticClient keeps an Elasticsearch index of events
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

func (c *ElasticClient) indexName() string {
	return config.FormatIndex(c.config, c.config.Index)
}

// IndexEvent adds or replaces one event document
func (c *ElasticClient) IndexEvent(ctx context.Context, event *models.Event) error {
	doc, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event document")
	}

	req := esapi.IndexRequest{
		Index:      c.indexName(),
		DocumentID: event.ID,
		Body:       bytes.NewReader(doc),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("index", res)
	}

	log.Debug().Str("event_id", event.ID).Msg("event indexed")
	return nil
}

// DeleteEvent removes one event document; a missing document is not an error
func (c *ElasticClient) DeleteEvent(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{
		Index:      c.indexName(),
		DocumentID: id,
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch delete request")
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return responseError("delete", res)
	}
	return nil
}

// Reindex empties the index and bulk loads events
func (c *ElasticClient) Reindex(ctx context.Context, events []models.Event) error {
	indexName := c.indexName()

	del := esapi.DeleteByQueryRequest{
		Index:     []string{indexName},
		Body:      bytes.NewReader([]byte(`{"query":{"match_all":{}}}`)),
		Refresh:   boolPtr(true),
		Conflicts: "proceed",
	}
	res, err := del.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch delete-by-query request")
	}
	res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return responseError("delete-by-query", res)
	}

	if len(events) == 0 {
		return nil
	}

	var body bytes.Buffer
	for i := range events {
		meta, err := json.Marshal(map[string]interface{}{
			"index": map[string]string{"_index": indexName, "_id": events[i].ID},
		})
		if err != nil {
			return errors.Wrap(err, "failed to marshal bulk metadata")
		}
		doc, err := json.Marshal(&events[i])
		if err != nil {
			return errors.Wrap(err, "failed to marshal event document")
		}
		body.Write(meta)
		body.WriteByte('\n')
		body.Write(doc)
		body.WriteByte('\n')
	}

	bulk := esapi.BulkRequest{
		Body:    &body,
		Refresh: "true",
	}
	res, err = bulk.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch bulk request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("bulk", res)
	}

	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return errors.Wrap(err, "failed to parse Elasticsearch bulk response")
	}
	if result.Errors {
		return errors.New("Elasticsearch bulk request reported item errors")
	}

	log.Info().Int("count", len(events)).Str("index", indexName).Msg("events reindexed")
	return nil
}

// SearchEvents runs a free-text query across event fields ordered by date
func (c *ElasticClient) SearchEvents(ctx context.Context, text string) ([]models.Event, error) {
	query := map[string]interface{}{
		"size": maxResults,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     text,
				"fields":    searchFields,
				"fuzziness": "AUTO",
			},
		},
		"sort": []interface{}{
			map[string]string{"date": "asc"},
			"_score",
		},
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{c.indexName()},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("search", res)
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source models.Event `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	events := make([]models.Event, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		events = append(events, hit.Source)
	}
	return events, nil
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	return errors.Errorf("Elasticsearch %s error: %s %s", op, res.Status(), bytes.TrimSpace(body))
}

func boolPtr(b bool) *bool {
	return &b
}
