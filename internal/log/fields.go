package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldBackend     = "backend"
	FieldUserID      = "user_id"
	FieldUsername    = "username"
	FieldRecordID    = "record_id"
	FieldRecordCount = "record_count"
	FieldAmount      = "amount"
	FieldKind        = "kind"
	FieldDescription = "description"
	FieldDuration    = "duration_ms"
	FieldStatusCode  = "status_code"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldRequestID   = "request_id"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentSession = "session"
	ComponentStore   = "store"
	ComponentGateway = "gateway"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentBackend = "backend"
)

// Operations defines standard operation names
const (
	OpSignIn   = "sign_in"
	OpRegister = "register"
	OpSignOut  = "sign_out"
	OpRefresh  = "refresh"
	OpCreate   = "create"
	OpRemove   = "remove"
	OpLookup   = "lookup"
	OpSync     = "sync"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithUser adds the acting user id
func (f LogFields) WithUser(userID string) LogFields {
	if userID != "" {
		f[FieldUserID] = userID
	}
	return f
}

// WithRecord adds record-related fields
func (f LogFields) WithRecord(id, description, amount, kind string) LogFields {
	if id != "" {
		f[FieldRecordID] = id
	}
	f[FieldDescription] = description
	f[FieldAmount] = amount
	f[FieldKind] = kind
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
