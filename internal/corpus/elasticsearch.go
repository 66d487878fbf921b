package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

type ElasticsearchProvider struct {
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

func NewElasticsearchProvider(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchProvider {
	return &ElasticsearchProvider{
		client: client,
		index:  index,
		log:    log.WithFields(map[string]interface{}{"corpus": "es:" + index}),
	}
}

type searchEnvelope struct {
	Hits struct {
		Hits []struct {
			Source models.ApplicationOutcome `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (p *ElasticsearchProvider) FetchOutcomes(ctx context.Context, q Query) ([]models.ApplicationOutcome, error) {
	filters := []map[string]interface{}{
		{"term": map[string]interface{}{"grantType": q.GrantType}},
	}
	if q.OrganizationType != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"organizationType": q.OrganizationType},
		})
	}

	body := map[string]interface{}{
		"size": q.limit(),
		"sort": []map[string]interface{}{
			{"submittedAt": map[string]interface{}{"order": "desc"}},
		},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, errors.NewCorpusQueryFailedError("es:"+p.index, err)
	}

	res, err := p.client.Search(
		p.client.Search.WithContext(ctx),
		p.client.Search.WithIndex(p.index),
		p.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, errors.NewCorpusQueryFailedError("es:"+p.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewCorpusQueryFailedError("es:"+p.index, fmt.Errorf("search on %s returned %s", p.index, res.Status()))
	}

	var envelope searchEnvelope
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, errors.NewCorpusQueryFailedError("es:"+p.index, err)
	}

	outcomes := make([]models.ApplicationOutcome, 0, len(envelope.Hits.Hits))
	for _, hit := range envelope.Hits.Hits {
		outcomes = append(outcomes, hit.Source)
	}

	p.log.Debug("fetched outcomes", map[string]interface{}{
		"grantType": q.GrantType,
		"count":     len(outcomes),
	})
	return outcomes, nil
}
