package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldUser        = "uid"
	FieldAccount     = "account_id"
	FieldCategory    = "category_id"
	FieldTemplate    = "template_id"
	FieldTransaction = "transaction_id"
	FieldMonthKey    = "month_key"
	FieldAmountCents = "amount_cents"
	FieldBackend     = "backend"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAuth      = "auth"
	ComponentStore     = "store"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentBackend   = "backend"
	ComponentRateLimit = "rate_limit"

	ComponentTransactions = "transactions"
	ComponentAccounts     = "accounts"
	ComponentCategories   = "categories"
	ComponentBills        = "bills"
	ComponentSummary      = "summary"
	ComponentReconciler   = "reconciler"
)

// Operations defines standard operation names
const (
	OpCreate      = "create"
	OpRead        = "read"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpList        = "list"
	OpEnsure      = "ensure"
	OpPay         = "pay"
	OpReopen      = "reopen"
	OpRecompute   = "recompute"
	OpRecalculate = "recalculate"
	OpPublish     = "publish"
	OpConsume     = "consume"
	OpAppend      = "append"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUser adds user field
func (f LogFields) WithUser(uid string) LogFields {
	f[FieldUser] = uid
	return f
}

// WithMonthKey adds month key field
func (f LogFields) WithMonthKey(monthKey string) LogFields {
	f[FieldMonthKey] = monthKey
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
