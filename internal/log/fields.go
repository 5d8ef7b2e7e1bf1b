package log

// Field names for structured logging.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldAccountID     = "account_id"
	FieldRole          = "role"
	FieldShopID        = "shop_id"
	FieldCustomerID    = "customer_id"
	FieldTransactionID = "transaction_id"
	FieldTxType        = "type"
	FieldAmount        = "amount"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentReconcile = "reconcile"
)

const (
	OpCreate   = "create"
	OpRead     = "read"
	OpList     = "list"
	OpRecord   = "record"
	OpExport   = "export"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeAuth       = "auth_error"
	ErrorTypeForbidden  = "forbidden_error"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeConflict   = "conflict_error"
	ErrorTypeInternal   = "internal_error"
)

// Fields is a builder for structured log attributes.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithComponent(component string) Fields {
	f[FieldComponent] = component
	return f
}

func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithErrorType(t string) Fields {
	f[FieldErrorType] = t
	return f
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

func (f Fields) WithAccount(accountID, role string) Fields {
	if accountID != "" {
		f[FieldAccountID] = accountID
		f[FieldRole] = role
	}
	return f
}

// WithTransaction adds the fields identifying a ledger entry.
func (f Fields) WithTransaction(id, shopID, customerID, txType, amount string) Fields {
	f[FieldTransactionID] = id
	f[FieldShopID] = shopID
	f[FieldCustomerID] = customerID
	f[FieldTxType] = txType
	f[FieldAmount] = amount
	return f
}

// ToSlice flattens the fields into slog key/value pairs.
func (f Fields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
