package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/fenilmodi00/market-quotes/models"
	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisUpsertAttempts = 3

// RedisQuoteStore keeps one JSON document per symbol plus a set of known symbols
type RedisQuoteStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisQuoteStore creates a store on an existing client
func NewRedisQuoteStore(client *redis.Client, keyPrefix string) *RedisQuoteStore {
	return &RedisQuoteStore{client: client, keyPrefix: keyPrefix}
}

// NewRedisClient creates a client from the redis configuration
func NewRedisClient(config shared.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
}

func (store *RedisQuoteStore) quoteKey(symbol string) string {
	return store.keyPrefix + models.NormalizeSymbol(symbol)
}

func (store *RedisQuoteStore) symbolsKey() string {
	return store.keyPrefix + "symbols"
}

// Upsert writes the quote inside a WATCH transaction so the freshness check and the
// write see the same stored document
func (store *RedisQuoteStore) Upsert(ctx context.Context, quote models.Quote) error {
	quote.Symbol = models.NormalizeSymbol(quote.Symbol)
	key := store.quoteKey(quote.Symbol)

	payload, err := json.Marshal(quote)
	if err != nil {
		return &shared.StoreError{Symbol: quote.Symbol, Operation: "upsert", Cause: err}
	}

	transaction := func(tx *redis.Tx) error {
		existing, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var stored models.Quote
			if jsonErr := json.Unmarshal(existing, &stored); jsonErr == nil && stored.CapturedAt.After(quote.CapturedAt) {
				return shared.ErrStaleQuote
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, store.symbolsKey(), quote.Symbol)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= redisUpsertAttempts; attempt++ {
		err = store.client.Watch(ctx, transaction, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, shared.ErrStaleQuote) {
			return err
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return &shared.StoreError{Symbol: quote.Symbol, Operation: "upsert", Cause: err}
		}

		logrus.WithFields(logrus.Fields{
			"component": "RedisQuoteStore",
			"symbol":    quote.Symbol,
			"attempt":   attempt,
		}).Debug("Concurrent quote write detected, retrying")
	}

	return &shared.StoreError{Symbol: quote.Symbol, Operation: "upsert", Cause: err}
}

// SelectAll returns every stored quote ordered by symbol
func (store *RedisQuoteStore) SelectAll(ctx context.Context) ([]models.Quote, error) {
	symbols, err := store.client.SMembers(ctx, store.symbolsKey()).Result()
	if err != nil {
		return nil, &shared.StoreError{Operation: "select", Cause: err}
	}
	if len(symbols) == 0 {
		return []models.Quote{}, nil
	}

	sort.Strings(symbols)
	keys := make([]string, len(symbols))
	for i, symbol := range symbols {
		keys[i] = store.quoteKey(symbol)
	}

	values, err := store.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, &shared.StoreError{Operation: "select", Cause: err}
	}

	quotes := make([]models.Quote, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var quote models.Quote
		if err := json.Unmarshal([]byte(raw), &quote); err != nil {
			logrus.WithFields(logrus.Fields{
				"component": "RedisQuoteStore",
				"symbol":    symbols[i],
			}).WithError(err).Warn("Skipping undecodable stored quote")
			continue
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

func (store *RedisQuoteStore) Get(ctx context.Context, symbol string) (models.Quote, error) {
	raw, err := store.client.Get(ctx, store.quoteKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Quote{}, shared.ErrQuoteNotFound
	}
	if err != nil {
		return models.Quote{}, &shared.StoreError{Symbol: symbol, Operation: "get", Cause: err}
	}

	var quote models.Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return models.Quote{}, &shared.StoreError{Symbol: symbol, Operation: "get", Cause: err}
	}
	return quote, nil
}

// Ping checks connectivity
func (store *RedisQuoteStore) Ping(ctx context.Context) error {
	return store.client.Ping(ctx).Err()
}
