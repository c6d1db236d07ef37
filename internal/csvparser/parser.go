package csvparser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/fingerprint"
	"github.com/ledgermesh/ledgermesh/internal/model"
)

const parseConfidence = 0.8

// Result is the outcome of parsing a whole CSV file: every row either
// contributes an Observation or (on failure) a row-level error. Rows with a
// blank date or a zero amount are silently skipped, matching the documented
// "no error" cases.
type Result struct {
	Observations []model.Observation
	Errors       []common.ParseRowError
}

// Parse reads content with the given mapping and currency, skipping the
// header row. Row-level errors never abort the file.
func Parse(content []byte, name string, mapping ColumnMapping, currency string) Result {
	delim := DetectDelimiter(string(content))
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = delim
	r.FieldsPerRecord = -1

	var result Result
	if _, err := r.Read(); err != nil {
		return result
	}

	rowIndex := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		rowIndex++
		if err != nil {
			result.Errors = append(result.Errors, common.ParseRowError{RowIndex: rowIndex, Message: err.Error()})
			continue
		}

		obs, rowErr, skip := parseRow(row, rowIndex, mapping, currency, name)
		switch {
		case skip:
			continue
		case rowErr != nil:
			result.Errors = append(result.Errors, *rowErr)
		default:
			result.Observations = append(result.Observations, obs)
		}
	}

	return result
}

func parseRow(row []string, rowIndex int, mapping ColumnMapping, currency, name string) (model.Observation, *common.ParseRowError, bool) {
	dateCell := cell(row, mapping.DateColumn)
	if dateCell == "" {
		return model.Observation{}, nil, true
	}

	ts, dateOnly, err := parseDate(dateCell, mapping.DateFormat)
	if err != nil {
		return model.Observation{}, &common.ParseRowError{
			RowIndex: rowIndex,
			Message:  fmt.Sprintf("unparseable date %q", dateCell),
		}, false
	}

	amountMinor, direction, amountErr, skipZero := parseAmount(row, mapping)
	if skipZero {
		return model.Observation{}, nil, true
	}
	if amountErr != nil {
		return model.Observation{}, &common.ParseRowError{
			RowIndex: rowIndex,
			Message:  amountErr.Error(),
		}, false
	}

	rawPayload := strings.Join(row, ",")
	obs := model.Observation{
		SourceType:        model.SourceCSV,
		SourceLocator:     name,
		RawPayload:        rawPayload,
		Currency:          currency,
		AmountMinor:       amountMinor,
		Direction:         direction,
		ParseConfidence:   parseConfidence,
		TimestampDateOnly: dateOnly,
	}
	obs.Timestamp = &ts

	if ref := cell(row, mapping.ReferenceColumn); ref != "" {
		obs.Reference = &ref
	}
	if desc := cell(row, mapping.DescriptionColumn); desc != "" {
		obs.Counterparty = &desc
	}
	hint := name
	obs.AccountHint = &hint

	obs.ID = observationID(name, rowIndex, rawPayload)
	fingerprint.Apply(&obs)

	return obs, nil, false
}

// parseAmount derives amount_minor and direction either from a single
// signed amount column, or from separate debit/credit columns where a
// non-zero debit wins over credit.
func parseAmount(row []string, mapping ColumnMapping) (int64, model.Direction, error, bool) {
	if mapping.AmountColumn >= 0 {
		raw := cell(row, mapping.AmountColumn)
		amt, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
		if err != nil {
			return 0, model.DirectionUnknown, fmt.Errorf("unparseable amount %q", raw), false
		}
		switch {
		case amt.IsNegative():
			return toMinor(amt.Abs()), model.DirectionDebit, nil, false
		case amt.IsPositive():
			return toMinor(amt), model.DirectionCredit, nil, false
		default:
			return 0, model.DirectionUnknown, nil, true
		}
	}

	debit := parseOptionalDecimal(cell(row, mapping.DebitColumn))
	credit := parseOptionalDecimal(cell(row, mapping.CreditColumn))
	switch {
	case !debit.IsZero():
		return toMinor(debit.Abs()), model.DirectionDebit, nil, false
	case !credit.IsZero():
		return toMinor(credit.Abs()), model.DirectionCredit, nil, false
	default:
		return 0, model.DirectionUnknown, nil, true
	}
}

func toMinor(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Truncate(0).IntPart()
}

func parseOptionalDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func observationID(name string, rowIndex int, rawPayload string) string {
	hash := fingerprint.ContentHash(model.SourceCSV, name, rawPayload)
	return fmt.Sprintf("csv:%s:%d:%s", name, rowIndex, hash[:12])
}
