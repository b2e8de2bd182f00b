package gitlab

// CombineStatusesForTest exposes combineStatuses.
var CombineStatusesForTest = combineStatuses

// CheckRetryForTest exposes checkRetry.
var CheckRetryForTest = checkRetry
