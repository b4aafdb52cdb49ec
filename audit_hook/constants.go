package audithook

// Action constants for audit events.
const (
	// Stream actions
	ActionStreamCreated     = "stream.created"
	ActionStreamWithdrawn   = "stream.withdrawn"
	ActionStreamCancelled   = "stream.cancelled"
	ActionStreamExtended    = "stream.extended"
	ActionStreamRenewed     = "stream.renewed"
	ActionStreamTerminated  = "stream.terminated"
	ActionAutoRenewToggled  = "stream.auto_renew_toggled"
	ActionBatchWithdrawn    = "creator.batch_withdrawn"
	ActionRenewalSweepFault = "keeper.sweep_failures"

	// Admin actions
	ActionFeeUpdated            = "config.fee_updated"
	ActionGracePeriodUpdated    = "config.grace_period_updated"
	ActionPlatformWalletUpdated = "config.platform_wallet_updated"
	ActionAdminUpdated          = "config.admin_updated"
)

// Resource constants for audit events.
const (
	ResourceStream  = "stream"
	ResourceCreator = "creator"
	ResourceConfig  = "config"
	ResourceKeeper  = "keeper"
)

// Category constants for audit events.
const (
	CategoryStream  = "stream"
	CategoryPayment = "payment"
	CategoryAdmin   = "admin"
	CategorySystem  = "system"
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
