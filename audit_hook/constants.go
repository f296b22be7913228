package audithook

// Action constants for audit events.
const (
	// Order actions
	ActionOrderCreated   = "order.created"
	ActionOrderSubmitted = "order.submitted"
	ActionOrderCompleted = "order.completed"
	ActionOrderCancelled = "order.cancelled"
	ActionOrderRefunded  = "order.refunded"

	// Payment actions
	ActionPaymentCompleted = "payment.completed"
	ActionPaymentFailed    = "payment.failed"
	ActionPaymentTimedOut  = "payment.timed_out"
	ActionPaymentRefunded  = "payment.refunded"

	// Invoice actions
	ActionInvoiceGenerated = "invoice.generated"
	ActionInvoiceSent      = "invoice.sent"
	ActionInvoicePaid      = "invoice.paid"
	ActionInvoiceCancelled = "invoice.cancelled"
)

// Resource constants for audit events.
const (
	ResourceOrder   = "order"
	ResourcePayment = "payment"
	ResourceInvoice = "invoice"
)

// Category constants for audit events.
const (
	CategoryEnrollment = "enrollment"
	CategoryPayment    = "payment"
	CategoryBilling    = "billing"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
