package constants

// ReceiptStatus is stored on every receipt row.
type ReceiptStatus string

const ReceiptStatusImported ReceiptStatus = "imported"

// TagBulkImport marks receipts produced by the bulk importer.
const TagBulkImport = "bulk-import"

// UnknownVendor is used when a row has no vendor value.
const UnknownVendor = "Unknown Vendor"

// BatchStatus is the canonical status for rows in import_batches.
type BatchStatus string

// Stable values (store these exact strings in DB).
const (
	BatchStatusRunning  BatchStatus = "RUNNING"
	BatchStatusImported BatchStatus = "IMPORTED"
	BatchStatusFailed   BatchStatus = "FAILED"
)
