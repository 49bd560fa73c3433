// Пакет provenance — уведомление внешней системы lineage о мутациях записей.
//
// Media Store не пишет lineage-графы сам: при create/update/delete он
// формирует ProvenanceRecord (PROV-узлы и связи) и отправляет его
// provenance-коллаборатору. Отправка best-effort: ошибка логируется
// и никогда не проваливает саму мутацию.
package provenance

import (
	"time"
)

// Verb — PROV-глагол связи между узлами.
type Verb string

const (
	VerbWasGeneratedBy    Verb = "wasGeneratedBy"
	VerbWasAttributedTo   Verb = "wasAttributedTo"
	VerbWasAssociatedWith Verb = "wasAssociatedWith"
	VerbUsed              Verb = "used"
	VerbActedOnBehalfOf   Verb = "actedOnBehalfOf"
	VerbWasInformedBy     Verb = "wasInformedBy"
	VerbWasDerivedFrom    Verb = "wasDerivedFrom"
	VerbWasRevisionOf     Verb = "wasRevisionOf"
	VerbWasInvalidatedBy  Verb = "wasInvalidatedBy"
)

// NodeType — тип PROV-узла.
type NodeType string

const (
	NodeEntity        NodeType = "Entity"
	NodeActivity      NodeType = "Activity"
	NodeAgent         NodeType = "Agent"
	NodeSoftwareAgent NodeType = "SoftwareAgent"
)

// Node — создаваемый узел lineage-графа.
type Node struct {
	// Label — глобально уникальный идентификатор узла (для записей media — PID)
	Label string `json:"label"`
	// NodeType — тип PROV-узла
	NodeType NodeType `json:"node_type"`
	// Description — человекочитаемое описание (опционально)
	Description string `json:"description,omitempty"`
	// Metadata — дополнительные атрибуты
	Metadata map[string]any `json:"metadata"`
}

// Relation — создаваемая связь между узлами.
type Relation struct {
	// SubjectLabel — label узла-субъекта
	SubjectLabel string `json:"subject_label"`
	// Verb — PROV-глагол связи
	Verb Verb `json:"verb"`
	// ObjectLabel — label узла-объекта
	ObjectLabel string `json:"object_label"`
	// StartTime / EndTime — границы активности (опционально)
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	// Metadata — дополнительные атрибуты
	Metadata map[string]any `json:"metadata"`
}

// Record — пакет узлов и связей, создаваемых одной транзакцией lineage.
type Record struct {
	// Nodes — узлы, создаваемые при отсутствии
	Nodes []Node `json:"nodes"`
	// Relations — связи между узлами
	Relations []Relation `json:"relations"`
	// RunID — идентификатор группировки связанных provenance-утверждений
	RunID string `json:"run_id"`
}

// Action — действие над записью media, о котором уведомляется коллаборатор.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionUpload Action = "upload"
	ActionDelete Action = "delete"
)

// Event — событие мутации записи media.
type Event struct {
	// PID — идентификатор записи
	PID string `json:"pid"`
	// Action — вид мутации
	Action Action `json:"action"`
	// Timestamp — время мутации (UTC)
	Timestamp time.Time `json:"timestamp"`
}
