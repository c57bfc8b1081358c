package importer

// RowKind tags what a raw import row turned out to be after validation.
type RowKind string

const (
	RowBuy        RowKind = "BUY"
	RowSell       RowKind = "SELL"
	RowDeposit    RowKind = "DEPOSIT"
	RowWithdrawal RowKind = "WITHDRAWAL"
)

// RowResult reports the outcome of one import row. Failures are isolated:
// a bad row never stops the rest of the batch.
type RowResult struct {
	Row   int     `json:"row"`
	Kind  RowKind `json:"kind,omitempty"`
	OK    bool    `json:"ok"`
	Error string  `json:"error,omitempty"`
	ID    int64   `json:"id,omitempty"`
}

// Report summarizes an import batch.
type Report struct {
	BatchID   string      `json:"batch_id"`
	ClientID  string      `json:"client_id"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Results   []RowResult `json:"results"`
}
