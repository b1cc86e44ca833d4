package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldFamilyID   = "family_id"
	FieldExpenseID  = "expense_id"
	FieldBudgetID   = "budget_id"
	FieldAlertKind  = "alert_kind"
	FieldPercentage = "percentage_used"
	FieldRecipients = "recipients"
	FieldCount      = "count"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentAuth         = "auth"
	ComponentExpense      = "expense"
	ComponentBudget       = "budget"
	ComponentNotification = "notification"
	ComponentFamily       = "family"
	ComponentAlerts       = "alerts"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentBackend      = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpScan     = "scan"
	OpFanOut   = "fan_out"
	OpMarkRead = "mark_read"
	OpDeliver  = "deliver"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

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

func (f LogFields) WithFamily(familyID string) LogFields {
	f[FieldFamilyID] = familyID
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithBudgetAlert adds the fields describing a triggered budget alert.
func (f LogFields) WithBudgetAlert(budgetID, kind string, pct float64) LogFields {
	f[FieldBudgetID] = budgetID
	f[FieldAlertKind] = kind
	f[FieldPercentage] = pct
	return f
}

func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
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
