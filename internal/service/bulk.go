// bulk.go — движок bulk-мутаций записей media.
//
// Каждый элемент батча применяется независимо через MediaService:
// ошибка элемента фиксируется в агрегате и не прерывает остальные.
// Элементы с разными PID выполняются параллельно (сериализацию одного
// PID обеспечивает locker); дубликаты PID внутри батча группируются
// в цепочку и выполняются последовательно в порядке входа — второй
// элемент видит эффект первого. Порядок successes/failures в ответе
// всегда совпадает с порядком входа.
//
// Системная ошибка (недоступность persistence) прерывает весь батч и
// возвращается одной фатальной ошибкой: ни одному исходу нельзя доверять.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

// Prometheus-метрики bulk-движка.
var (
	bulkBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ms_bulk_batches_total",
		Help: "Количество bulk-батчей (по результату).",
	}, []string{"status"})

	bulkItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ms_bulk_items_total",
		Help: "Количество элементов bulk-батчей (по исходу).",
	}, []string{"outcome"})
)

// MutationOp — вид мутации элемента bulk-запроса.
type MutationOp string

const (
	// OpUpdate — общая мутация (pid_type / store_config / rename)
	OpUpdate MutationOp = "update"
	// OpUpdateTags — замена тегов
	OpUpdateTags MutationOp = "update_tags"
	// OpUpdateStoreKey — подмена store_key
	OpUpdateStoreKey MutationOp = "update_store_key"
	// OpUpdateIdentifiers — key-wise upsert идентификаторов
	OpUpdateIdentifiers MutationOp = "update_identifiers"
	// OpUpdateMetadata — patch metadata (режимы keys/data)
	OpUpdateMetadata MutationOp = "update_metadata"
)

// MutationRequest — один элемент bulk-запроса.
type MutationRequest struct {
	// Op — вид мутации
	Op MutationOp
	// PID — целевая запись
	PID string
	// ExpectedVersion — optimistic-concurrency проверка (опционально)
	ExpectedVersion *int64

	// Поля OpUpdate
	NewPID      *string
	PIDType     *string
	StoreConfig *StoreConfigSpec

	// Поля остальных операций
	Tags         []string
	StoreKey     string
	Identifiers  map[string]string
	MetadataKeys []string
	MetadataData map[string]any
}

// ItemError — ошибка одного элемента bulk-запроса.
type ItemError struct {
	// PID — целевая запись элемента
	PID string `json:"pid"`
	// Kind — машиночитаемый вид ошибки
	Kind ErrorKind `json:"error"`
	// Message — описание
	Message string `json:"msg"`
}

// BulkResult — агрегат исходов батча.
// Каждый входной элемент даёт ровно один исход: success или failure.
type BulkResult struct {
	// Successes — PID успешных элементов в порядке входа
	Successes []string `json:"successes"`
	// Failures — ошибки элементов в порядке входа
	Failures []ItemError `json:"failures"`
}

// BulkEngine — движок bulk-мутаций.
type BulkEngine struct {
	media *MediaService
	// concurrency — максимум одновременно выполняемых цепочек PID
	concurrency int64
	logger      *slog.Logger
}

// NewBulkEngine создаёт bulk-движок.
// concurrency <= 0 приводится к 1 (последовательное выполнение).
func NewBulkEngine(media *MediaService, concurrency int, logger *slog.Logger) *BulkEngine {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BulkEngine{
		media:       media,
		concurrency: int64(concurrency),
		logger:      logger.With(slog.String("component", "bulk_engine")),
	}
}

// outcome — исход одного элемента (success xor failure).
type outcome struct {
	pid string
	err error
}

// Apply выполняет батч мутаций.
//
// Дедлайн ctx: уже завершённые элементы сохраняют исход, незапущенные
// помечаются ошибкой CANCELLED — ни один элемент не теряется молча.
// Фатальная (нетипизированная) ошибка прерывает батч целиком.
func (e *BulkEngine) Apply(ctx context.Context, requests []MutationRequest) (*BulkResult, error) {
	outcomes := make([]outcome, len(requests))

	// Группировка в цепочки по PID с сохранением порядка входа.
	chains := make(map[string][]int, len(requests))
	var order []string
	for i, req := range requests {
		if _, ok := chains[req.PID]; !ok {
			order = append(order, req.PID)
		}
		chains[req.PID] = append(chains[req.PID], i)
	}

	// Фатальная ошибка: фиксируется один раз, останавливает все цепочки.
	var (
		fatalOnce sync.Once
		fatalErr  error
	)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fatal := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			cancel()
		})
	}

	sem := semaphore.NewWeighted(e.concurrency)
	var wg sync.WaitGroup
	for _, pid := range order {
		indices := chains[pid]
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := sem.Acquire(runCtx, 1); err != nil {
				// Дедлайн или фатальная остановка до старта цепочки.
				e.markCancelled(outcomes, indices, requests)
				return
			}
			defer sem.Release(1)

			for _, i := range indices {
				if runCtx.Err() != nil {
					outcomes[i] = e.cancelledOutcome(requests[i])
					continue
				}

				err := e.applyOne(runCtx, requests[i])
				if err != nil && KindOf(err) == "" {
					// Нетипизированная ошибка — сбой системы, не элемента.
					fatal(err)
					outcomes[i] = e.cancelledOutcome(requests[i])
					continue
				}
				outcomes[i] = outcome{pid: requests[i].PID, err: err}
			}
		}()
	}
	wg.Wait()

	if fatalErr != nil {
		bulkBatchesTotal.WithLabelValues("fatal").Inc()
		return nil, fmt.Errorf("bulk-батч прерван системной ошибкой: %w", fatalErr)
	}

	result := e.collect(outcomes)
	bulkBatchesTotal.WithLabelValues("completed").Inc()

	e.logger.Info("Bulk-батч завершён",
		slog.Int("items", len(requests)),
		slog.Int("successes", len(result.Successes)),
		slog.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// applyOne применяет один элемент батча через MediaService.
func (e *BulkEngine) applyOne(ctx context.Context, req MutationRequest) error {
	var err error
	switch req.Op {
	case OpUpdate:
		_, err = e.media.Update(ctx, UpdateParams{
			PID:             req.PID,
			NewPID:          req.NewPID,
			PIDType:         req.PIDType,
			StoreConfig:     req.StoreConfig,
			ExpectedVersion: req.ExpectedVersion,
		})
	case OpUpdateTags:
		_, err = e.media.UpdateTags(ctx, req.PID, req.Tags, req.ExpectedVersion)
	case OpUpdateStoreKey:
		_, err = e.media.UpdateStoreKey(ctx, req.PID, req.StoreKey, req.ExpectedVersion)
	case OpUpdateIdentifiers:
		_, err = e.media.UpdateIdentifiers(ctx, req.PID, req.Identifiers, req.ExpectedVersion)
	case OpUpdateMetadata:
		_, err = e.media.UpdateMetadata(ctx, req.PID, req.MetadataKeys, req.MetadataData, req.ExpectedVersion)
	default:
		err = fmt.Errorf("%w: неизвестная операция %q", ErrValidation, req.Op)
	}

	// Дедлайн, сработавший внутри операции, отражается как CANCELLED.
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return ErrCancelled
	}
	return err
}

// markCancelled помечает все элементы цепочки как CANCELLED.
func (e *BulkEngine) markCancelled(outcomes []outcome, indices []int, requests []MutationRequest) {
	for _, i := range indices {
		outcomes[i] = e.cancelledOutcome(requests[i])
	}
}

// cancelledOutcome — исход необработанного элемента.
func (e *BulkEngine) cancelledOutcome(req MutationRequest) outcome {
	return outcome{
		pid: req.PID,
		err: fmt.Errorf("%w: элемент не обработан до дедлайна", ErrCancelled),
	}
}

// collect собирает агрегат в порядке входа.
func (e *BulkEngine) collect(outcomes []outcome) *BulkResult {
	result := &BulkResult{
		Successes: []string{},
		Failures:  []ItemError{},
	}
	for _, o := range outcomes {
		if o.err == nil {
			result.Successes = append(result.Successes, o.pid)
			bulkItemsTotal.WithLabelValues("success").Inc()
			continue
		}
		result.Failures = append(result.Failures, ItemError{
			PID:     o.pid,
			Kind:    KindOf(o.err),
			Message: o.err.Error(),
		})
		bulkItemsTotal.WithLabelValues("failure").Inc()
	}
	return result
}
