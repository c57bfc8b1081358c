package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/oakmont/folio/internal/modules/engine"
	"github.com/oakmont/folio/internal/modules/ledger"
)

// Column aliases accepted in the header row. Broker exports disagree on
// naming, so every known variant maps onto a canonical field.
var headerAliases = map[string]string{
	"date":             "date",
	"transaction date": "date",
	"trade date":       "date",
	"executed at":      "date",
	"symbol":           "symbol",
	"ticker":           "symbol",
	"scrip":            "symbol",
	"instrument":       "symbol",
	"type":             "type",
	"transaction type": "type",
	"side":             "type",
	"action":           "type",
	"quantity":         "quantity",
	"qty":              "quantity",
	"shares":           "quantity",
	"units":            "quantity",
	"price":            "price",
	"rate":             "price",
	"unit price":       "price",
	"brokerage":        "fees",
	"fees":             "fees",
	"commission":       "fees",
	"charges":          "fees",
	"amount":           "amount",
	"value":            "amount",
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"01-02-2006",
}

// Service parses broker CSV exports and feeds the rows through the engine.
type Service struct {
	engine *engine.Engine
	log    zerolog.Logger
}

func NewService(eng *engine.Engine, log zerolog.Logger) *Service {
	return &Service{
		engine: eng,
		log:    log.With().Str("service", "importer").Logger(),
	}
}

// Import reads a CSV stream and records each row for the client. Row
// failures are collected in the report; only unreadable input (no header,
// malformed CSV) fails the batch outright.
func (s *Service) Import(clientID string, r io.Reader) (*Report, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	report := &Report{
		BatchID:  uuid.NewString(),
		ClientID: clientID,
	}

	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.Total++
			report.Failed++
			report.Results = append(report.Results, RowResult{
				Row:   rowNum,
				OK:    false,
				Error: fmt.Sprintf("malformed row: %v", err),
			})
			continue
		}
		if isBlank(record) {
			continue
		}

		report.Total++
		res := s.importRow(clientID, cols, record, rowNum)
		if res.OK {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)
	}

	s.log.Info().
		Str("client_id", clientID).
		Str("batch_id", report.BatchID).
		Int("total", report.Total).
		Int("failed", report.Failed).
		Msg("import batch processed")

	return report, nil
}

func (s *Service) importRow(clientID string, cols map[string]int, record []string, rowNum int) RowResult {
	res := RowResult{Row: rowNum}

	kind, err := parseKind(field(cols, record, "type"))
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Kind = kind

	executedAt, err := parseDate(field(cols, record, "date"))
	if err != nil {
		res.Error = err.Error()
		return res
	}

	switch kind {
	case RowBuy, RowSell:
		txn, buildErr := s.buildTrade(clientID, kind, cols, record, executedAt)
		if buildErr != nil {
			res.Error = buildErr.Error()
			return res
		}
		if kind == RowBuy {
			lot, err := s.engine.RecordBuy(txn)
			if err != nil {
				res.Error = err.Error()
				return res
			}
			res.ID = lot.ID
		} else {
			realized, err := s.engine.RecordSell(txn)
			if err != nil {
				res.Error = err.Error()
				return res
			}
			if len(realized) > 0 {
				res.ID = realized[0].SellTransactionID
			}
		}

	case RowDeposit, RowWithdrawal:
		amount, err := parseDecimal(field(cols, record, "amount"), "amount")
		if err != nil {
			res.Error = err.Error()
			return res
		}
		evtKind := ledger.KindDeposit
		if kind == RowWithdrawal {
			evtKind = ledger.KindWithdrawal
		}
		_, err = s.engine.RecordCashEvent(ledger.CashEvent{
			ClientID:    clientID,
			Kind:        evtKind,
			Amount:      amount,
			ExecutedAt:  executedAt,
			Description: "Imported " + strings.ToLower(string(kind)),
		})
		if err != nil {
			res.Error = err.Error()
			return res
		}
	}

	res.OK = true
	return res
}

func (s *Service) buildTrade(clientID string, kind RowKind, cols map[string]int, record []string, executedAt time.Time) (ledger.Transaction, error) {
	symbol := strings.ToUpper(strings.TrimSpace(field(cols, record, "symbol")))
	if symbol == "" {
		return ledger.Transaction{}, fmt.Errorf("missing symbol")
	}
	quantity, err := parseDecimal(field(cols, record, "quantity"), "quantity")
	if err != nil {
		return ledger.Transaction{}, err
	}
	price, err := parseDecimal(field(cols, record, "price"), "price")
	if err != nil {
		return ledger.Transaction{}, err
	}
	fees := decimal.Zero
	if raw := field(cols, record, "fees"); raw != "" {
		fees, err = parseDecimal(raw, "fees")
		if err != nil {
			return ledger.Transaction{}, err
		}
	}

	side := ledger.SideBuy
	if kind == RowSell {
		side = ledger.SideSell
	}
	return ledger.Transaction{
		ClientID:   clientID,
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		Price:      price,
		Fees:       fees,
		ExecutedAt: executedAt,
	}, nil
}

func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(strings.Trim(raw, "\uFEFF")))
		if canonical, ok := headerAliases[name]; ok {
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	if _, ok := cols["date"]; !ok {
		return nil, fmt.Errorf("header is missing a date column")
	}
	if _, ok := cols["type"]; !ok {
		return nil, fmt.Errorf("header is missing a type column")
	}
	return cols, nil
}

func field(cols map[string]int, record []string, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseKind(raw string) (RowKind, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY", "B", "PURCHASE":
		return RowBuy, nil
	case "SELL", "S", "SALE":
		return RowSell, nil
	case "DEPOSIT", "CREDIT", "CASH IN":
		return RowDeposit, nil
	case "WITHDRAWAL", "WITHDRAW", "DEBIT", "CASH OUT":
		return RowWithdrawal, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", raw)
	}
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

func parseDecimal(raw, name string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("missing %s", name)
	}
	raw = strings.ReplaceAll(raw, ",", "")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", name, raw)
	}
	return d, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
