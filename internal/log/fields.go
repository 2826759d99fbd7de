package log

import (
	"net/http"
	"sort"
)

// Field names shared by every component.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldPerson      = "person"
	FieldMonth       = "month"
	FieldPeriod      = "period"
	FieldAmount      = "amount"
	FieldLedgerID    = "ledger_id"
	FieldFixedID     = "fixed_id"
	FieldRange       = "range"
	FieldCommandID   = "command_id"
	FieldCommandKind = "command_kind"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentWorker    = "worker"
	ComponentRollover  = "rollover"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
)

// Operation names used in error logs.
const (
	OpCreate  = "create"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpList    = "list"
	OpSplit   = "split"
	OpSummary = "summary"
)

// LogFields collects key/value pairs before they are handed to slog.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	if ip != "" {
		f[FieldClientIP] = ip
	}
	return f
}

// WithError records err's message; a nil err leaves f untouched.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithPerson adds the person and, when known, the competency month.
func (f LogFields) WithPerson(person, month string) LogFields {
	f[FieldPerson] = person
	if month != "" {
		f[FieldMonth] = month
	}
	return f
}

func (f LogFields) WithCommand(id, kind string) LogFields {
	f[FieldCommandID] = id
	f[FieldCommandKind] = kind
	return f
}

// WithRequest adds method and path, plus the query string when there is one.
func (f LogFields) WithRequest(r *http.Request) LogFields {
	f[FieldMethod] = r.Method
	f[FieldPath] = r.URL.Path
	if r.URL.RawQuery != "" {
		f[FieldQuery] = r.URL.RawQuery
	}
	return f
}

func (f LogFields) WithStatus(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice flattens f into slog key/value pairs ordered by key, so log lines
// for the same event always list their fields the same way.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(f)*2)
	for _, k := range keys {
		out = append(out, k, f[k])
	}
	return out
}
