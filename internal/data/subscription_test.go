package data

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupSubscriptionRepo(t *testing.T) (*SubscriptionRepo, sqlmock.Sqlmock, *gorm.DB, CacheClient, func()) {
	gormDB, mock, dbCleanup := setupTestDB(t)
	rdb, _ := setupTestRedis(t)
	cache := NewCacheClient(rdb)

	repo := NewSubscriptionRepo(nil, &Data{db: gormDB}, cache, testLogger())
	return repo, mock, gormDB, cache, dbCleanup
}

func subscriptionColumns() []string {
	return []string{
		"id", "client_id", "target_url", "secret", "events",
		"max_attempts", "timeout_ms", "active", "created_at", "updated_at",
	}
}

func TestSubscriptionRepo_ListActiveByEvent(t *testing.T) {
	ctx := context.Background()
	listQuery := regexp.QuoteMeta("SELECT * FROM `webhook_subscriptions` WHERE active = ? AND JSON_CONTAINS(events, JSON_QUOTE(?))")

	t.Run("loads from database on cold cache", func(t *testing.T) {
		repo, mock, _, _, cleanup := setupSubscriptionRepo(t)
		defer cleanup()

		now := time.Now().UTC()
		rows := sqlmock.NewRows(subscriptionColumns()).
			AddRow("sub-1", "client-1", "https://a.example.com/hook", "whsec_a",
				`["member.checked_in","class.cancelled"]`, 3, int64(5000), true, now, now).
			AddRow("sub-2", "client-2", "https://b.example.com/hook", "whsec_b",
				`["member.checked_in"]`, 5, int64(10000), true, now, now)
		mock.ExpectQuery(listQuery).
			WithArgs(true, "member.checked_in").
			WillReturnRows(rows)

		subs, err := repo.ListActiveByEvent(ctx, "member.checked_in")
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Equal(t, "sub-1", subs[0].ID)
		assert.Equal(t, []string{"member.checked_in", "class.cancelled"}, subs[0].Events)
		assert.Equal(t, 5*time.Second, subs[0].Timeout)
		assert.Equal(t, 10*time.Second, subs[1].Timeout)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second call served from process cache", func(t *testing.T) {
		repo, mock, _, _, cleanup := setupSubscriptionRepo(t)
		defer cleanup()

		mock.ExpectQuery(listQuery).
			WithArgs(true, "member.checked_in").
			WillReturnRows(sqlmock.NewRows(subscriptionColumns()).
				AddRow("sub-1", "client-1", "https://a.example.com/hook", "whsec_a",
					`["member.checked_in"]`, 3, int64(5000), true, time.Now(), time.Now()))

		_, err := repo.ListActiveByEvent(ctx, "member.checked_in")
		require.NoError(t, err)

		// No further query expectation; a second DB hit would fail the mock.
		subs, err := repo.ListActiveByEvent(ctx, "member.checked_in")
		require.NoError(t, err)
		assert.Len(t, subs, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fresh process hits shared cache", func(t *testing.T) {
		repo, mock, gormDB, cache, cleanup := setupSubscriptionRepo(t)
		defer cleanup()

		mock.ExpectQuery(listQuery).
			WithArgs(true, "class.cancelled").
			WillReturnRows(sqlmock.NewRows(subscriptionColumns()).
				AddRow("sub-1", "client-1", "https://a.example.com/hook", "whsec_a",
					`["class.cancelled"]`, 3, int64(5000), true, time.Now(), time.Now()))

		_, err := repo.ListActiveByEvent(ctx, "class.cancelled")
		require.NoError(t, err)

		// A second repo instance has an empty local LRU but shares redis.
		other := NewSubscriptionRepo(nil, &Data{db: gormDB}, cache, testLogger())
		subs, err := other.ListActiveByEvent(ctx, "class.cancelled")
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "sub-1", subs[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed events row skipped", func(t *testing.T) {
		repo, mock, _, _, cleanup := setupSubscriptionRepo(t)
		defer cleanup()

		mock.ExpectQuery(listQuery).
			WithArgs(true, "member.checked_in").
			WillReturnRows(sqlmock.NewRows(subscriptionColumns()).
				AddRow("sub-bad", "client-1", "https://a.example.com/hook", "whsec_a",
					`{not json`, 3, int64(5000), true, time.Now(), time.Now()).
				AddRow("sub-ok", "client-2", "https://b.example.com/hook", "whsec_b",
					`["member.checked_in"]`, 3, int64(5000), true, time.Now(), time.Now()))

		subs, err := repo.ListActiveByEvent(ctx, "member.checked_in")
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "sub-ok", subs[0].ID)
	})

	t.Run("database failure", func(t *testing.T) {
		repo, mock, _, _, cleanup := setupSubscriptionRepo(t)
		defer cleanup()

		mock.ExpectQuery(listQuery).
			WithArgs(true, "member.checked_in").
			WillReturnError(errors.New("connection lost"))

		_, err := repo.ListActiveByEvent(ctx, "member.checked_in")
		assert.Error(t, err)
	})
}

func TestSubscriptionRepo_Get(t *testing.T) {
	ctx := context.Background()
	getQuery := regexp.QuoteMeta("SELECT * FROM `webhook_subscriptions` WHERE id = ? ORDER BY `webhook_subscriptions`.`id` LIMIT ?")

	t.Run("loads and caches", func(t *testing.T) {
		repo, mock, _, _, cleanup := setupSubscriptionRepo(t)
		defer cleanup()

		mock.ExpectQuery(getQuery).
			WithArgs("sub-1", 1).
			WillReturnRows(sqlmock.NewRows(subscriptionColumns()).
				AddRow("sub-1", "client-1", "https://a.example.com/hook", "whsec_a",
					`["member.checked_in"]`, 3, int64(5000), true, time.Now(), time.Now()))

		sub, err := repo.Get(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, "sub-1", sub.ID)
		assert.Equal(t, "whsec_a", sub.Secret)

		// Cached now; no second query expectation.
		sub, err = repo.Get(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, "https://a.example.com/hook", sub.TargetURL)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock, _, _, cleanup := setupSubscriptionRepo(t)
		defer cleanup()

		mock.ExpectQuery(getQuery).
			WithArgs("sub-missing", 1).
			WillReturnRows(sqlmock.NewRows(subscriptionColumns()))

		_, err := repo.Get(ctx, "sub-missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "subscription not found")
	})
}
