package extract

// Candidate is one transaction as returned by the extraction model, prior to
// normalization. Numeric fields keep their raw JSON values: the model is
// instructed to send numbers but occasionally sends strings or omits fields
// entirely, and none of that is fatal at this stage.
type Candidate struct {
	Date        string
	Description string
	Withdrawal  any
	Deposit     any
	Balance     any

	// SourceFile is stamped by the ingestion pipeline, not the model.
	SourceFile string
}
