package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldGroupID     = "group_id"
	FieldProfileID   = "profile_id"
	FieldMessageID   = "message_id"
	FieldPendingID   = "pending_id"
	FieldExpenseID   = "expense_id"
	FieldCategoryID  = "category_id"
	FieldCategory    = "category"
	FieldPhone       = "phone"
	FieldAmountCents = "amount_cents"
	FieldAttachment  = "attachment_kind"
	FieldGroupCount  = "group_count"
	FieldDuration    = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentDirectory = "directory"
	ComponentRegistrar = "registrar"
	ComponentIntake    = "intake"
	ComponentConfirm   = "confirm"
	ComponentReaper    = "reaper"
	ComponentWhatsApp  = "whatsapp"
	ComponentAnalyzer  = "analyzer"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
)

// Operations defines standard operation names
const (
	OpRefresh  = "refresh"
	OpLookup   = "lookup"
	OpIntake   = "intake"
	OpConfirm  = "confirm"
	OpReap     = "reap"
	OpSync     = "sync"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
