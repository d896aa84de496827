package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aescanero/scriptbook/pkg/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	outputKeyPrefix   = "scriptbook:output:"
	notebookKeyPrefix = "scriptbook:notebook:"

	// pendingValue marks an output target whose result has not arrived
	pendingValue = "pending"
)

// ResultStore implements ResultStore using Redis keys with TTL
type ResultStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewResultStore creates a new Redis result store
func NewResultStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ResultStore {
	return &ResultStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Begin writes the pending placeholder for an output target
func (s *ResultStore) Begin(ctx context.Context, target string) error {
	if err := s.client.Set(ctx, getOutputKey(target), pendingValue, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to create output target: %w", err)
	}
	return nil
}

// Put overwrites the placeholder with result. Writes to targets that no
// longer exist are rejected, so late results never resurrect a target.
func (s *ResultStore) Put(ctx context.Context, target string, result *domain.ExecutionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	ok, err := s.client.SetXX(ctx, getOutputKey(target), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", target, domain.ErrResultNotFound)
	}

	s.logger.Debug("result saved",
		zap.String("output_target", target),
		zap.Bool("error", result.HasError()))

	return nil
}

// Get retrieves the result stored under target
func (s *ResultStore) Get(ctx context.Context, target string) (*domain.ExecutionResult, bool, error) {
	data, err := s.client.Get(ctx, getOutputKey(target)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, fmt.Errorf("%s: %w", target, domain.ErrResultNotFound)
		}
		return nil, false, fmt.Errorf("failed to get result: %w", err)
	}

	if string(data) == pendingValue {
		return nil, true, nil
	}

	var result domain.ExecutionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, false, nil
}

// Delete removes an output target
func (s *ResultStore) Delete(ctx context.Context, target string) error {
	if err := s.client.Del(ctx, getOutputKey(target)).Err(); err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	return nil
}

// NotebookStore implements NotebookStore using Redis. Snapshots do not expire.
type NotebookStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewNotebookStore creates a new Redis notebook store
func NewNotebookStore(client *redis.Client, logger *zap.Logger) *NotebookStore {
	return &NotebookStore{
		client: client,
		logger: logger,
	}
}

// SaveNotebook persists doc under name
func (s *NotebookStore) SaveNotebook(ctx context.Context, name string, doc *domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal notebook: %w", err)
	}

	if err := s.client.Set(ctx, getNotebookKey(name), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save notebook: %w", err)
	}

	s.logger.Debug("notebook saved",
		zap.String("name", name),
		zap.Int("cells", len(doc.Cells)))

	return nil
}

// LoadNotebook retrieves the notebook stored under name
func (s *NotebookStore) LoadNotebook(ctx context.Context, name string) (*domain.Document, error) {
	data, err := s.client.Get(ctx, getNotebookKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", name, domain.ErrNotebookNotFound)
		}
		return nil, fmt.Errorf("failed to get notebook: %w", err)
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedNotebook, err)
	}
	return &doc, nil
}

// ListNotebooks returns the names of stored notebooks in lexical order
func (s *NotebookStore) ListNotebooks(ctx context.Context) ([]string, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, notebookKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		if name := strings.TrimPrefix(key, notebookKeyPrefix); name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names, nil
}

func getOutputKey(target string) string {
	return outputKeyPrefix + target
}

func getNotebookKey(name string) string {
	return notebookKeyPrefix + name
}
