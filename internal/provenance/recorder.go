// recorder.go — отправка provenance-событий внешнему коллаборатору.
package provenance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики provenance.
var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ms_provenance_events_total",
		Help: "Количество отправленных provenance-событий (по действию и результату).",
	}, []string{"action", "status"})
)

// Recorder — приёмник provenance-событий.
// Реализации: HTTPRecorder (внешний сервис) и NopRecorder (коллаборатор
// не сконфигурирован).
type Recorder interface {
	// RecordMutation уведомляет о мутации записи media.
	// Ошибка означает только сбой доставки — вызывающий код логирует её
	// и продолжает работу.
	RecordMutation(ctx context.Context, ev Event) error
}

// NopRecorder — заглушка: события отбрасываются.
type NopRecorder struct{}

// RecordMutation ничего не делает.
func (NopRecorder) RecordMutation(context.Context, Event) error { return nil }

// HTTPRecorder отправляет provenance-записи внешнему сервису по HTTP.
type HTTPRecorder struct {
	httpClient *http.Client
	baseURL    string
	agentLabel string
	logger     *slog.Logger
}

// NewHTTPRecorder создаёт HTTP-recorder.
// baseURL — базовый URL provenance-сервиса; agentLabel — label SoftwareAgent-узла
// этого сервиса в lineage-графе.
func NewHTTPRecorder(baseURL string, timeout time.Duration, agentLabel string, logger *slog.Logger) *HTTPRecorder {
	return &HTTPRecorder{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		agentLabel: agentLabel,
		logger:     logger.With(slog.String("component", "provenance_recorder")),
	}
}

// RecordMutation переводит событие мутации в PROV-запись и отправляет её.
//
// Узлы: Entity (запись media, label == PID), Activity (сама мутация),
// SoftwareAgent (этот сервис). Связи: entity wasGeneratedBy activity,
// activity wasAssociatedWith agent.
func (r *HTTPRecorder) RecordMutation(ctx context.Context, ev Event) error {
	activityLabel := fmt.Sprintf("%s:%s:%d", ev.Action, ev.PID, ev.Timestamp.UnixNano())
	ts := ev.Timestamp.UTC()

	rec := Record{
		RunID: uuid.New().String(),
		Nodes: []Node{
			{Label: ev.PID, NodeType: NodeEntity, Metadata: map[string]any{}},
			{
				Label:    activityLabel,
				NodeType: NodeActivity,
				Metadata: map[string]any{"action": string(ev.Action)},
			},
			{Label: r.agentLabel, NodeType: NodeSoftwareAgent, Metadata: map[string]any{}},
		},
		Relations: []Relation{
			{
				SubjectLabel: ev.PID,
				Verb:         r.entityVerb(ev.Action),
				ObjectLabel:  activityLabel,
				EndTime:      &ts,
				Metadata:     map[string]any{},
			},
			{
				SubjectLabel: activityLabel,
				Verb:         VerbWasAssociatedWith,
				ObjectLabel:  r.agentLabel,
				Metadata:     map[string]any{},
			},
		},
	}

	if err := r.post(ctx, rec); err != nil {
		eventsTotal.WithLabelValues(string(ev.Action), "error").Inc()
		return err
	}

	eventsTotal.WithLabelValues(string(ev.Action), "success").Inc()
	return nil
}

// entityVerb выбирает PROV-глагол связи entity → activity по виду мутации.
func (r *HTTPRecorder) entityVerb(action Action) Verb {
	switch action {
	case ActionCreate, ActionUpload:
		return VerbWasGeneratedBy
	case ActionDelete:
		return VerbWasInvalidatedBy
	default:
		return VerbWasRevisionOf
	}
}

// post отправляет PROV-запись коллаборатору.
func (r *HTTPRecorder) post(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации provenance-записи: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/v1/provenance", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки provenance-записи: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provenance-сервис вернул статус %d: %s", resp.StatusCode, payload)
	}
	return nil
}
