package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/ecomdata/internal/domain"
	"github.com/rpattn/ecomdata/internal/repository"
)

// Format selects the export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"

	sheetName = "Orders"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat accepts csv or xlsx, case-insensitively; empty means csv.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, raw)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Service writes stored order lines as CSV or XLSX.
type Service struct {
	orders  repository.OrderLineRepository
	maxRows int
	sortKey string
	now     func() time.Time
}

type Option func(*Service)

func WithMaxRows(rows int) Option {
	return func(s *Service) {
		if rows > 0 {
			s.maxRows = rows
		}
	}
}

func WithSortKey(field string) Option {
	return func(s *Service) {
		if domain.IsCanonicalField(field) {
			s.sortKey = field
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(orders repository.OrderLineRepository, opts ...Option) *Service {
	service := &Service{
		orders:  orders,
		maxRows: 100000,
		sortKey: domain.FieldOrderDate,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Result describes a finished export.
type Result struct {
	FileName string
	Rows     int
	Bytes    int64
}

// FileName builds the download name for an export.
func (s *Service) FileName(prefix string, format Format) string {
	base := sanitizeFileComponent(prefix)
	if base == "" {
		base = "ecommerce-data"
	}
	return fmt.Sprintf("%s-%s.%s", base, s.now().UTC().Format("20060102T150405Z"), format)
}

// Export writes stored order lines to w, ascending by the configured sort key.
func (s *Service) Export(ctx context.Context, format Format, prefix string, w io.Writer) (Result, error) {
	lines, err := s.orders.FindSorted(ctx, s.sortKey, false, s.maxRows)
	if err != nil {
		return Result{}, fmt.Errorf("list order lines: %w", err)
	}

	headers := exportHeaders(lines)
	result := Result{FileName: s.FileName(prefix, format), Rows: len(lines)}

	buffered := bufio.NewWriterSize(w, 1<<16)
	counter := &countingWriter{writer: buffered}

	switch format {
	case FormatXLSX:
		err = writeXLSX(counter, headers, lines)
	case FormatCSV:
		err = writeCSV(counter, headers, lines)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Result{}, err
	}
	if err := buffered.Flush(); err != nil {
		return Result{}, fmt.Errorf("flush export: %w", err)
	}

	result.Bytes = counter.count
	return result, nil
}

// exportHeaders lists canonical columns, then metadata, then every
// pass-through attribute seen, sorted.
func exportHeaders(lines []domain.OrderLine) []string {
	headers := append([]string{}, domain.CanonicalFields...)
	headers = append(headers, "source_file", "processed_at")

	seen := make(map[string]struct{})
	var extra []string
	for _, line := range lines {
		for key := range line.Attributes {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	return append(headers, extra...)
}

func rowValues(line domain.OrderLine, headers []string) []any {
	values := make([]any, len(headers))
	for i, header := range headers {
		switch {
		case domain.IsNumericField(header):
			v, _ := line.Number(header)
			values[i] = v
		case domain.IsCanonicalField(header):
			if v, ok := line.Text(header); ok {
				values[i] = v
			}
		case header == "source_file":
			values[i] = line.SourceFile
		case header == "processed_at":
			values[i] = line.ProcessedAt
		default:
			if v, ok := line.Attributes[header]; ok {
				values[i] = v
			}
		}
	}
	return values
}

func writeCSV(w io.Writer, headers []string, lines []domain.OrderLine) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(headers))
	for _, line := range lines {
		for i, value := range rowValues(line, headers) {
			record[i] = formatValue(value)
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, headers []string, lines []domain.OrderLine) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	stream, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("open sheet writer: %w", err)
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := stream.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for idx, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return fmt.Errorf("resolve cell: %w", err)
		}
		values := rowValues(line, headers)
		for i, value := range values {
			if ts, ok := value.(time.Time); ok {
				values[i] = formatValue(ts)
			}
		}
		if err := stream.SetRow(cell, values); err != nil {
			return fmt.Errorf("write row %d: %w", idx+1, err)
		}
	}
	if err := stream.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "export"
	}
	return result
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
