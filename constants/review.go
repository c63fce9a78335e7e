package constants

// ReviewReason tags why a bill was escalated for human review.
type ReviewReason string

const (
	ReviewLineFlagged         ReviewReason = "line_flagged"
	ReviewTotalsMismatch      ReviewReason = "totals_mismatch"
	ReviewStrategyDivergence  ReviewReason = "strategy_divergence"
	ReviewVendorLowConfidence ReviewReason = "vendor_low_confidence"
	ReviewInvoiceNumberIsFile ReviewReason = "invoice_number_is_filename"
	ReviewNoUsableLines       ReviewReason = "no_usable_lines"
)

// LineSource records which strategy produced an extracted line.
type LineSource string

const (
	SourcePatternA LineSource = "pattern_a"
	SourcePatternB LineSource = "pattern_b"
	SourceTable    LineSource = "table"
)

// GrandTotalSource records where the bill grand total came from.
type GrandTotalSource string

const (
	TotalStated     GrandTotalSource = "stated"
	TotalSumOfLines GrandTotalSource = "sum_of_lines"
)
