// Package loader reads transaction datasets from CSV files into the
// in-memory snapshot the analysis pipeline runs on.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Column names of the fraud detection dataset. Matching is
// case-insensitive; columns may appear in any order and optional
// columns may be absent entirely.
const (
	colTransactionID = "Transaction_ID"
	colUserID        = "User_ID"
	colAmount        = "Transaction_Amount"
	colType          = "Transaction_Type"
	colTime          = "Time_of_Transaction"
	colDevice        = "Device_Used"
	colLocation      = "Location"
	colPriorFraud    = "Previous_Fraudulent_Transactions"
	colAccountAge    = "Account_Age"
	colTxLast24H     = "Number_of_Transactions_Last_24H"
	colPayment       = "Payment_Method"
	colFraudulent    = "Fraudulent"
)

// ReadFile loads a dataset from the CSV file at path.
func ReadFile(path string) ([]*domain.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return records, nil
}

// Read parses CSV transaction records from r. The first row is the
// header. Empty cells in optional numeric columns become nil fields so
// vectorization can apply its own defaults. A row whose User_ID does
// not parse is rejected; malformed optional cells only drop the cell.
func Read(r io.Reader) ([]*domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := idx[strings.ToLower(colUserID)]; !ok {
		return nil, fmt.Errorf("missing required column %s", colUserID)
	}

	cell := func(row []string, name string) string {
		i, ok := idx[strings.ToLower(name)]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []*domain.Transaction
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to parse row %d: %w", line, err)
		}

		userID, err := strconv.ParseInt(cell(row, colUserID), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid %s: %w", line, colUserID, err)
		}

		tx := &domain.Transaction{
			ID:              cell(row, colTransactionID),
			UserID:          userID,
			Type:            cell(row, colType),
			Device:          cell(row, colDevice),
			Location:        cell(row, colLocation),
			PaymentMethod:   cell(row, colPayment),
			Amount:          parseFloat(cell(row, colAmount)),
			Time:            parseFloat(cell(row, colTime)),
			PriorFraudCount: parseInt(cell(row, colPriorFraud)),
			AccountAgeDays:  parseInt(cell(row, colAccountAge)),
			TxCountLast24H:  parseInt(cell(row, colTxLast24H)),
			FraudLabel:      parseInt(cell(row, colFraudulent)),
		}
		if tx.ID == "" {
			tx.ID = fmt.Sprintf("row-%d", line)
		}
		records = append(records, tx)
	}

	slog.Debug("dataset loaded", "records", len(records))
	return records, nil
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
