package e2e

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/meridian-id/meridian/internal/jobs"
	"github.com/meridian-id/meridian/internal/permission"
	"github.com/meridian-id/meridian/jobs"
)

func TestWarmPermissionsTaskRebuildsCache(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	grants := newGrantStore()
	cache := permission.NewCache(rdb, time.Minute)
	service := permission.NewService(slog.New(slog.DiscardHandler), grants, cache, nil)

	_, err := service.AssignPermissionsToUser(context.Background(), 7, "admin", []string{"read:user", "write:user"})
	require.NoError(t, err)

	// Poison the cache entry; the task must rebuild it from storage.
	require.NoError(t, cache.Set(context.Background(), 7, "stale"))

	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	handler := jobs.NewWarmPermissionsHandler(slog.New(slog.DiscardHandler), service, metrics)

	task, err := jobs.NewWarmPermissionsTask(jobs.WarmPermissionsPayload{UserID: 7})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))

	value, hit, err := cache.Get(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, "read:user,write:user", value)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() != "meridian_jobs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "status" && label.GetValue() == "success" {
					found = true
					require.Equal(t, float64(1), m.GetCounter().GetValue())
				}
			}
		}
	}
	require.True(t, found, "expected a success run to be recorded")
}

func TestWarmPermissionsTaskSkipsRetryOnBadPayload(t *testing.T) {
	grants := newGrantStore()
	service := permission.NewService(slog.New(slog.DiscardHandler), grants, nil, nil)
	handler := jobs.NewWarmPermissionsHandler(slog.New(slog.DiscardHandler), service, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task := asynq.NewTask(jobs.TaskTypeWarmPermissions, []byte("not json"))
	err := handler(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
