package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"estimate-api/internal/model"
)

var csvHeader = []string{
	"id", "idempotency_key", "created_at", "base_item_id", "item_name", "quantity",
	"options", "items_total", "options_total", "subtotal",
	"discount_rate", "tax_rate", "discount_amount", "tax_amount", "final_total",
}

// CSVWriter writes quotes as CSV rows after a single header row.
type CSVWriter struct {
	w           *csv.Writer
	wroteHeader bool
	rows        int
}

// NewCSVWriter creates a CSVWriter on w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Write appends quotes, emitting the header first if needed.
func (c *CSVWriter) Write(quotes []model.PersistedQuote) error {
	if !c.wroteHeader {
		if err := c.w.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		c.wroteHeader = true
	}

	for i := range quotes {
		if err := c.w.Write(quoteRecord(&quotes[i])); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		c.rows++
	}
	return nil
}

// Flush writes the header if nothing was written yet and flushes buffered rows.
func (c *CSVWriter) Flush() error {
	if !c.wroteHeader {
		if err := c.Write(nil); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

// Rows returns the number of quote rows written.
func (c *CSVWriter) Rows() int {
	return c.rows
}

func quoteRecord(q *model.PersistedQuote) []string {
	names := make([]string, len(q.Options))
	for i, o := range q.Options {
		names[i] = o.Name
	}

	return []string{
		q.ID.String(),
		q.IdempotencyKey,
		q.CreatedAt.UTC().Format(time.RFC3339Nano),
		strconv.FormatInt(q.BaseItemID, 10),
		q.ItemName,
		strconv.Itoa(q.Quantity),
		strings.Join(names, "; "),
		strconv.FormatInt(q.ItemsTotal, 10),
		strconv.FormatInt(q.OptionsTotal, 10),
		strconv.FormatInt(q.Subtotal, 10),
		q.DiscountRate.String(),
		q.TaxRate.String(),
		strconv.FormatInt(q.DiscountAmount, 10),
		strconv.FormatInt(q.TaxAmount, 10),
		strconv.FormatInt(q.FinalTotal, 10),
	}
}
