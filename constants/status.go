package constants

// BatchStatus is the canonical status for rows in order_batches.
type BatchStatus string

// Stable values (store these exact strings in DB).
const (
	BatchStatusUnreviewed  BatchStatus = "UNREVIEWED"   // ingested, no validation concerns
	BatchStatusNeedsReview BatchStatus = "NEEDS_REVIEW" // validation concerns or rejected
	BatchStatusApproved    BatchStatus = "APPROVED"     // explicitly approved by a human
)

// Valid reports whether s is one of the stable status values.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusUnreviewed, BatchStatusNeedsReview, BatchStatusApproved:
		return true
	}
	return false
}
