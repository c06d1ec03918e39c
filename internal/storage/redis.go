package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"farewatch/internal/config"
	"farewatch/internal/fraud"
)

// NewRedisClient builds a go-redis client from config.
func NewRedisClient(cfg config.RedisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// RedisStore keeps one JSON document per ticket under <prefix>:tx:doc:<id>
// and a sorted-set index <prefix>:tx:index scored by transaction time in
// microseconds.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wires a go-redis client into a RedisStore.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "farewatch"
	}
	return &RedisStore{client: client, prefix: prefix}
}

type redisRecord struct {
	ID         uuid.UUID       `json:"id"`
	TicketID   string          `json:"ticket_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Station    string          `json:"station"`
	Amount     decimal.Decimal `json:"amount"`
	FraudScore float64         `json:"fraud_score"`
	Status     fraud.Status    `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

const insertAttempts = 3

func (s *RedisStore) recordKey(ticketID string) string {
	return s.prefix + ":tx:doc:" + ticketID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":tx:index"
}

func indexScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func scoreArg(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// Close closes the client.
func (s *RedisStore) Close() {
	if s == nil || s.client == nil {
		return
	}
	_ = s.client.Close()
}

func (s *RedisStore) getClient() (redis.UniversalClient, error) {
	if s == nil || s.client == nil {
		return nil, ErrNotConfigured
	}
	return s.client, nil
}

// InsertTransaction writes the document and its index entry in one MULTI,
// guarded by WATCH on the document key so only one writer claims a ticket.
func (s *RedisStore) InsertTransaction(ctx context.Context, rec Record) (Record, error) {
	client, err := s.getClient()
	if err != nil {
		return Record{}, err
	}
	if !rec.Status.Valid() {
		return Record{}, ErrInvalidStatus
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(toRedisRecord(rec))
	if err != nil {
		return Record{}, fmt.Errorf("encode transaction: %w", err)
	}

	key := s.recordKey(rec.TicketID)
	member := redis.Z{Score: indexScore(rec.Timestamp), Member: rec.TicketID}
	insert := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateKey
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.ZAdd(ctx, s.indexKey(), member)
			return nil
		})
		return err
	}

	// A lost WATCH race means another writer touched the key; the retry
	// then sees it and reports the duplicate.
	for attempt := 0; attempt < insertAttempts; attempt++ {
		err = client.Watch(ctx, insert, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}

	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, ErrDuplicateKey):
		return Record{}, ErrDuplicateKey
	default:
		return Record{}, writeErr("insert transaction", err)
	}
}

// ListRecentTransactions reads the index newest first. Members sharing the
// score of the last entry on the page are loaded too, so ties resolve by
// CreatedAt like the other backends.
func (s *RedisStore) ListRecentTransactions(ctx context.Context, limit int) ([]Record, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Record{}, nil
	}

	page, err := client.ZRevRangeWithScores(ctx, s.indexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	if len(page) == 0 {
		return []Record{}, nil
	}

	last := scoreArg(page[len(page)-1].Score)
	tied, err := client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{Min: last, Max: last}).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}

	seen := make(map[string]struct{}, len(page)+len(tied))
	ids := make([]string, 0, len(page)+len(tied))
	for _, z := range page {
		id := fmt.Sprint(z.Member)
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, id := range tied {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}

	records, err := s.load(ctx, client, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ListTransactionsBetween returns transactions in [from, to], oldest first.
func (s *RedisStore) ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]Record, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	ids, err := client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: scoreArg(indexScore(from)),
		Max: scoreArg(indexScore(to)),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list transactions between: %w", err)
	}

	loaded, err := s.load(ctx, client, ids)
	if err != nil {
		return nil, err
	}
	records := loaded[:0]
	for _, r := range loaded {
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		records = append(records, r)
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return records, nil
}

// GetTransaction loads one transaction.
func (s *RedisStore) GetTransaction(ctx context.Context, ticketID string) (Record, error) {
	client, err := s.getClient()
	if err != nil {
		return Record{}, err
	}

	payload, err := client.Get(ctx, s.recordKey(ticketID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get transaction: %w", err)
	}
	return decodeRedisRecord(payload)
}

// UpdateTransactionStatus rewrites the document under WATCH so a concurrent
// writer aborts the transaction instead of being overwritten.
func (s *RedisStore) UpdateTransactionStatus(ctx context.Context, ticketID string, status fraud.Status) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}
	if !status.Valid() {
		return ErrInvalidStatus
	}

	key := s.recordKey(ticketID)
	txErr := client.Watch(ctx, func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		rec, err := decodeRedisRecord(payload)
		if err != nil {
			return err
		}
		rec.Status = status
		updated, err := json.Marshal(toRedisRecord(rec))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case txErr == nil:
		return nil
	case errors.Is(txErr, ErrNotFound):
		return ErrNotFound
	default:
		return writeErr("update transaction status", txErr)
	}
}

// CountByStatus scans every indexed document.
func (s *RedisStore) CountByStatus(ctx context.Context) (StatusCounts, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	ids, err := client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	records, err := s.load(ctx, client, ids)
	if err != nil {
		return nil, err
	}

	counts := StatusCounts{}
	for _, r := range records {
		counts[r.Status]++
	}
	return counts, nil
}

func (s *RedisStore) load(ctx context.Context, client redis.UniversalClient, ids []string) ([]Record, error) {
	records := make([]Record, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}

	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRedisRecord([]byte(str))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func toRedisRecord(r Record) redisRecord {
	return redisRecord{
		ID:         r.ID,
		TicketID:   r.TicketID,
		Timestamp:  r.Timestamp,
		Station:    r.Station,
		Amount:     r.Amount,
		FraudScore: r.FraudScore,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
	}
}

func decodeRedisRecord(payload []byte) (Record, error) {
	var rr redisRecord
	if err := json.Unmarshal(payload, &rr); err != nil {
		return Record{}, fmt.Errorf("decode transaction: %w", err)
	}
	return Record{
		ID:         rr.ID,
		TicketID:   rr.TicketID,
		Timestamp:  rr.Timestamp,
		Station:    rr.Station,
		Amount:     rr.Amount,
		FraudScore: rr.FraudScore,
		Status:     rr.Status,
		CreatedAt:  rr.CreatedAt,
	}, nil
}

var _ Backend = (*RedisStore)(nil)
