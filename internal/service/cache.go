// cache.go — LRU-кэш записей media с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ms_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей media.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ms_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей media.",
	})
)

// CacheService — LRU-кэш записей media с автоматическим TTL.
// Каждый экземпляр сервиса имеет собственный in-memory кэш (per-instance).
// Мутации всегда идут в БД через CAS, поэтому устаревшая запись в кэше
// не нарушает корректность — только свежесть чтения.
type CacheService struct {
	cache *expirable.LRU[string, *model.MediaRecord]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.MediaRecord](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает запись из кэша по pid.
func (c *CacheService) Get(pid string) (*model.MediaRecord, bool) {
	val, ok := c.cache.Get(pid)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(pid string, rec *model.MediaRecord) {
	c.cache.Add(pid, rec)
}

// Delete удаляет запись из кэша (инвалидация при мутации/rename/delete).
func (c *CacheService) Delete(pid string) {
	c.cache.Remove(pid)
}
