package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Ledger arithmetic
const (
	CodeArithmeticOverflow  Code = "ARITHMETIC_OVERFLOW"
	CodeArithmeticUnderflow Code = "ARITHMETIC_UNDERFLOW"
	CodeDivisionByZero      Code = "DIVISION_BY_ZERO"
)

// Pool and token errors
const (
	CodeZeroInput             Code = "ZERO_INPUT"
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeRatioMismatch         Code = "RATIO_MISMATCH"
	CodeInsufficientFunds     Code = "INSUFFICIENT_FUNDS"
	CodeInvariantViolated     Code = "INVARIANT_VIOLATED"
	CodeUnknownAsset          Code = "UNKNOWN_ASSET"
	CodePoolNotFound          Code = "POOL_NOT_FOUND"
	CodeAssetMismatch         Code = "ASSET_MISMATCH"
)

// Arbitrage errors
const (
	CodeNoProfitableOpportunity Code = "NO_PROFITABLE_OPPORTUNITY"
	CodeExecutionAborted        Code = "EXECUTION_ABORTED"
	CodeRollbackFailed          Code = "ROLLBACK_FAILED"

	// Execution guards
	CodeCircuitOpen       Code = "CIRCUIT_OPEN"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
)

// Infrastructure errors
const (
	CodeStorageError  Code = "STORAGE_ERROR"
	CodeExportFailed  Code = "EXPORT_FAILED"
	CodePublishFailed Code = "PUBLISH_FAILED"
)
