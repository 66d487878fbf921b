// Package engine is the dispatch layer: it resolves an operation name, checks
// the payload against the registered input schema, routes through the result
// cache and hands off to the operation handler. Persistence of results is
// best-effort and never fails a request.
package engine

import (
	"context"
	"encoding/json"
	"time"

	"grant-engine/internal/cache"
	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/common/metrics"
	"grant-engine/internal/common/observability"
	"grant-engine/internal/common/validation"
	"grant-engine/internal/models"
	"grant-engine/pkg/registry"

	analyzegrantrequirements "grant-engine/internal/operations/analyze-grant-requirements"
	analyzesuccesspatterns "grant-engine/internal/operations/analyze-success-patterns"
	checkeligibility "grant-engine/internal/operations/check-eligibility"
	generateapplicationguidance "grant-engine/internal/operations/generate-application-guidance"
	validatecompliance "grant-engine/internal/operations/validate-compliance"
)

// Envelope wraps every dispatch result with its provenance.
type Envelope struct {
	Operation   string          `json:"operation"`
	Fingerprint string          `json:"fingerprint"`
	FromCache   bool            `json:"fromCache"`
	Data        json.RawMessage `json:"data"`
}

// ResultStore is satisfied by store.Store. A nil store disables persistence
// and cache-miss recovery.
type ResultStore interface {
	Save(ctx context.Context, operation, fingerprint, grantID string, result []byte) error
	Load(ctx context.Context, operation, fingerprint string) ([]byte, time.Time, error)
}

// Handlers bundles the five operation handlers.
type Handlers struct {
	Requirements *analyzegrantrequirements.Handler
	Eligibility  *checkeligibility.Handler
	Compliance   *validatecompliance.Handler
	Patterns     *analyzesuccesspatterns.Handler
	Guidance     *generateapplicationguidance.Handler
}

type Engine struct {
	registry *registry.OperationRegistry
	cache    *cache.Cache // nil when caching is disabled
	store    ResultStore
	handlers *Handlers
	obs      *observability.Observability
	logger   logger.Logger
}

func New(reg *registry.OperationRegistry, resultCache *cache.Cache, resultStore ResultStore, handlers *Handlers, obs *observability.Observability, log logger.Logger) *Engine {
	return &Engine{
		registry: reg,
		cache:    resultCache,
		store:    resultStore,
		handlers: handlers,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "engine"}),
	}
}

// Dispatch executes one analysis operation. Identical concurrent requests
// share a single computation through the cache layer.
func (e *Engine) Dispatch(ctx context.Context, operation string, payload json.RawMessage) (*Envelope, error) {
	start := time.Now()
	metrics.AnalysisRequests.WithLabelValues(operation).Inc()

	envelope, err := e.dispatch(ctx, operation, payload)

	duration := time.Since(start)
	metrics.AnalysisDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if e.obs != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.obs.RecordDispatch(ctx, operation, status)
		e.obs.RecordDuration(ctx, operation, duration)
	}

	if err != nil {
		stdErr := errors.Normalize(err).WithOperation(operation)
		metrics.AnalysisFailures.WithLabelValues(operation, string(stdErr.Code)).Inc()
		e.logger.Error("dispatch failed", map[string]interface{}{
			"operation": operation,
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		return nil, stdErr
	}
	return envelope, nil
}

func (e *Engine) dispatch(ctx context.Context, operation string, payload json.RawMessage) (*Envelope, error) {
	op, registered := e.registry.Find(operation)
	if !registered {
		return nil, errors.NewUnsupportedOperationError(operation)
	}

	if err := e.validatePayload(op, payload); err != nil {
		return nil, err
	}

	fingerprint, err := cache.Fingerprint(operation, payload)
	if err != nil {
		return nil, errors.NewInvalidInputError("payload", err.Error())
	}

	var data []byte
	var fromCache bool
	if e.cache != nil && op.Cacheable {
		data, fromCache, err = e.cache.GetOrCompute(ctx, fingerprint, func(cctx context.Context) ([]byte, error) {
			// A lost redis entry is first recovered from the persisted
			// result before the handler recomputes.
			if recovered := e.recover(cctx, operation, fingerprint); recovered != nil {
				return recovered, nil
			}
			return e.run(cctx, operation, fingerprint, payload)
		})
	} else {
		data, err = e.run(ctx, operation, fingerprint, payload)
	}
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Operation:   operation,
		Fingerprint: fingerprint,
		FromCache:   fromCache,
		Data:        data,
	}, nil
}

// recover serves a cache miss from the persisted result when a fresh one
// exists, under the same freshness bound the cache applies. Read failures
// are soft and fall through to recomputation.
func (e *Engine) recover(ctx context.Context, operation, fingerprint string) []byte {
	if e.store == nil {
		return nil
	}
	data, createdAt, err := e.store.Load(ctx, operation, fingerprint)
	if err != nil {
		e.logger.Warn("result read-back failed, recomputing", map[string]interface{}{
			"operation":   operation,
			"fingerprint": fingerprint,
			"error":       err.Error(),
		})
		return nil
	}
	if data == nil || time.Since(createdAt) > e.cache.TTL() {
		return nil
	}
	return data
}

// run executes the typed handler and persists the result. A failed store
// write is recorded in the result metadata, never surfaced as an error.
func (e *Engine) run(ctx context.Context, operation, fingerprint string, payload json.RawMessage) ([]byte, error) {
	result, metadata, err := e.execute(ctx, operation, payload)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		if saveErr := e.store.Save(ctx, operation, fingerprint, grantIDFromPayload(payload), data); saveErr != nil {
			e.logger.Warn("result persistence failed", map[string]interface{}{
				"operation":   operation,
				"fingerprint": fingerprint,
				"error":       saveErr.Error(),
			})
			if metadata != nil {
				metadata[models.MetaKeyStoreWrite] = "failed"
				data, err = json.Marshal(result)
				if err != nil {
					return nil, err
				}
			}
		}
	}
	return data, nil
}

func (e *Engine) execute(ctx context.Context, operation string, payload json.RawMessage) (interface{}, models.Metadata, error) {
	switch operation {
	case analyzegrantrequirements.Name:
		var input analyzegrantrequirements.Input
		if err := json.Unmarshal(payload, &input); err != nil {
			return nil, nil, errors.NewInvalidInputError("payload", err.Error())
		}
		out, err := e.handlers.Requirements.Execute(ctx, &input)
		if err != nil {
			return nil, nil, err
		}
		return out, out.Metadata, nil

	case checkeligibility.Name:
		var input checkeligibility.Input
		if err := json.Unmarshal(payload, &input); err != nil {
			return nil, nil, errors.NewInvalidInputError("payload", err.Error())
		}
		out, err := e.handlers.Eligibility.Execute(ctx, &input)
		if err != nil {
			return nil, nil, err
		}
		return out, out.Metadata, nil

	case validatecompliance.Name:
		var input validatecompliance.Input
		if err := json.Unmarshal(payload, &input); err != nil {
			return nil, nil, errors.NewInvalidInputError("payload", err.Error())
		}
		out, err := e.handlers.Compliance.Execute(ctx, &input)
		if err != nil {
			return nil, nil, err
		}
		return out, out.Metadata, nil

	case analyzesuccesspatterns.Name:
		var input analyzesuccesspatterns.Input
		if err := json.Unmarshal(payload, &input); err != nil {
			return nil, nil, errors.NewInvalidInputError("payload", err.Error())
		}
		out, err := e.handlers.Patterns.Execute(ctx, &input)
		if err != nil {
			return nil, nil, err
		}
		return out, out.Metadata, nil

	case generateapplicationguidance.Name:
		var input generateapplicationguidance.Input
		if err := json.Unmarshal(payload, &input); err != nil {
			return nil, nil, errors.NewInvalidInputError("payload", err.Error())
		}
		out, err := e.handlers.Guidance.Execute(ctx, &input)
		if err != nil {
			return nil, nil, err
		}
		return out, out.Metadata, nil

	default:
		return nil, nil, errors.NewUnsupportedOperationError(operation)
	}
}

func (e *Engine) validatePayload(op *registry.Operation, payload json.RawMessage) error {
	if len(op.InputSchema) == 0 {
		return nil
	}

	var input map[string]interface{}
	if err := json.Unmarshal(payload, &input); err != nil {
		return errors.NewInvalidInputError("payload", "payload must be a JSON object")
	}

	schema, err := validation.FromMap(op.InputSchema)
	if err != nil {
		return errors.NewInvalidInputError("payload", err.Error())
	}

	result := validation.ValidateInput(input, schema)
	if !result.Valid {
		first := result.Errors[0]
		return errors.NewInvalidInputError(first.Field, first.Message)
	}
	return nil
}

// grantIDFromPayload extracts the grant scope of a result when the payload
// carries one; guidance composition later reads results back per grant.
func grantIDFromPayload(payload json.RawMessage) string {
	var probe struct {
		GrantID string `json:"grantId"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.GrantID
}
