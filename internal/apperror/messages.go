package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeArithmeticOverflow:  "Arithmetic overflow",
	CodeArithmeticUnderflow: "Arithmetic underflow",
	CodeDivisionByZero:      "Division by zero",

	CodeZeroInput:             "Input amount must be greater than zero",
	CodeInsufficientLiquidity: "Insufficient liquidity in pool",
	CodeRatioMismatch:         "Deposit ratio does not match pool reserves",
	CodeInsufficientFunds:     "Insufficient funds",
	CodeInvariantViolated:     "Constant-product invariant would decrease",
	CodeUnknownAsset:          "Asset is not traded by this pool",
	CodePoolNotFound:          "Pool not found",
	CodeAssetMismatch:         "Cannot operate on different assets",

	CodeNoProfitableOpportunity: "No profitable arbitrage opportunity",
	CodeExecutionAborted:        "Arbitrage execution aborted and rolled back",
	CodeRollbackFailed:          "Compensating rollback failed",

	CodeCircuitOpen:       "Circuit breaker is open",
	CodeRateLimitExceeded: "Rate limit exceeded",

	CodeStorageError:  "Storage operation failed",
	CodeExportFailed:  "Export failed",
	CodePublishFailed: "Failed to publish event",
}

// Message returns the default message for a code.
func Message(code Code) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return string(code)
}
