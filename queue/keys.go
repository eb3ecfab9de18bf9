package queue

import "strings"

// DefaultNamespace prefixes every key when no namespace is configured.
const DefaultNamespace = "ai_council"

// Keys derives broker key names. Producers and workers must agree on the
// namespace; every other part of the naming is fixed.
type Keys struct {
	Namespace string
}

// NewKeys returns Keys for ns, falling back to DefaultNamespace.
func NewKeys(ns string) Keys {
	if ns == "" {
		ns = DefaultNamespace
	}
	return Keys{Namespace: ns}
}

// Tasks is the shared main queue: <ns>:tasks
func (k Keys) Tasks() string {
	return formatKeyName(k.ns(), "tasks")
}

// Result is the per-subtask result list: <ns>:results:<subtask_id>
func (k Keys) Result(subtaskID string) string {
	return formatKeyName(k.ns(), "results", subtaskID)
}

// Processing is a worker's private claim list: <ns>:tasks:processing:<worker_id>
func (k Keys) Processing(workerID string) string {
	return k.processingPrefix() + workerID
}

// ProcessingPattern matches every worker's processing list. Glob
// metacharacters in the namespace are escaped so they match literally.
func (k Keys) ProcessingPattern() string {
	return escapeGlob(k.processingPrefix()) + "*"
}

// Heartbeat is a worker's liveness key: <ns>:worker:heartbeat:<worker_id>
func (k Keys) Heartbeat(workerID string) string {
	return formatKeyName(k.ns(), "worker", "heartbeat", workerID)
}

// DeadLetter holds payloads that can never produce a retrievable result.
func (k Keys) DeadLetter() string {
	return formatKeyName(k.ns(), "tasks", "deadletter")
}

// WorkerFromProcessing extracts the worker id from a processing list key.
func (k Keys) WorkerFromProcessing(key string) (string, bool) {
	prefix := k.processingPrefix()
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(key, prefix)
	if id == "" {
		return "", false
	}
	return id, true
}

func (k Keys) processingPrefix() string {
	return formatKeyName(k.ns(), "tasks", "processing") + ":"
}

func (k Keys) ns() string {
	if k.Namespace == "" {
		return DefaultNamespace
	}
	return k.Namespace
}

// escapeGlob backslash-escapes the characters SCAN MATCH treats specially.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// formatKeyName joins key parts with the broker's ':' separator.
func formatKeyName(parts ...string) string {
	return strings.Join(parts, ":")
}
