package ticket

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BarcodeAllocator hands out ticket barcodes for a clinic day.
type BarcodeAllocator interface {
	Next(ctx context.Context, day time.Time) (string, error)
}

const barcodePrefix = "MT"

// RedisBarcodes numbers tickets per clinic day with a Redis counter, so
// every instance sharing the Redis draws from one sequence.
type RedisBarcodes struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisBarcodes(client *redis.Client) *RedisBarcodes {
	return &RedisBarcodes{client: client, ttl: 48 * time.Hour}
}

func barcodeKey(day time.Time) string {
	return "clinic:barcode:medical_ticket:" + day.Format("20060102")
}

func (b *RedisBarcodes) Next(ctx context.Context, day time.Time) (string, error) {
	key := barcodeKey(day)
	n, err := b.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("allocate barcode: %w", err)
	}
	if n == 1 {
		if err := b.client.Expire(ctx, key, b.ttl).Err(); err != nil {
			return "", fmt.Errorf("expire barcode counter: %w", err)
		}
	}
	return fmt.Sprintf("%s-%s-%04d", barcodePrefix, day.Format("20060102"), n), nil
}

// RandomBarcodes is used when no Redis is configured.
type RandomBarcodes struct{}

func (RandomBarcodes) Next(_ context.Context, day time.Time) (string, error) {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return fmt.Sprintf("%s-%s-%s", barcodePrefix, day.Format("20060102"), suffix), nil
}
