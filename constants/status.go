package constants

// BillStatus is the lifecycle state of a bill row driven around the engine.
type BillStatus string

// Stable values (store these exact strings in DB).
const (
	BillStatusPending   BillStatus = "PENDING"   // uploaded, not yet processed
	BillStatusProcessed BillStatus = "PROCESSED" // engine ran, lines saved
	BillStatusFailed    BillStatus = "FAILED"    // unreadable or zero usable lines
	BillStatusConfirmed BillStatus = "CONFIRMED" // human approved
)

// BillStatuses holds the allowed values for the bills.status column.
var BillStatuses = []string{
	string(BillStatusPending),
	string(BillStatusProcessed),
	string(BillStatusFailed),
	string(BillStatusConfirmed),
}

// JobStatus is the canonical status for rows in extract_jobs.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "QUEUED"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusOK      JobStatus = "OK"
	JobStatusFailed  JobStatus = "FAILED"
)
