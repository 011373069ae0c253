// Package archive exports execution receipts to Parquet files for offline analysis.
package archive

import (
	"github.com/shopspring/decimal"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
)

// Row is one receipt in columnar form. Amounts stay base-10 strings of raw
// units; ProfitTokens is a lossy convenience column.
type Row struct {
	ID           string  `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Caller       string  `parquet:"name=caller, type=BYTE_ARRAY, convertedtype=UTF8"`
	InputAsset   string  `parquet:"name=input_asset, type=BYTE_ARRAY, convertedtype=UTF8"`
	Direction    string  `parquet:"name=direction, type=BYTE_ARRAY, convertedtype=UTF8"`
	AmountIn     string  `parquet:"name=amount_in, type=BYTE_ARRAY, convertedtype=UTF8"`
	Intermediate string  `parquet:"name=intermediate, type=BYTE_ARRAY, convertedtype=UTF8"`
	Final        string  `parquet:"name=final, type=BYTE_ARRAY, convertedtype=UTF8"`
	Profit       string  `parquet:"name=profit, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProfitTokens float64 `parquet:"name=profit_tokens, type=DOUBLE"`
	Settled      bool    `parquet:"name=settled, type=BOOLEAN"`
	RolledBack   bool    `parquet:"name=rolled_back, type=BOOLEAN"`
	ErrorCode    string  `parquet:"name=error_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartedAtMs  int64   `parquet:"name=started_at_ms, type=INT64"`
	DurationUs   int64   `parquet:"name=duration_us, type=INT64"`
}

// NewRow flattens r.
func NewRow(r *domain.Receipt) Row {
	return Row{
		ID:           r.ID,
		Caller:       r.Caller.Hex(),
		InputAsset:   r.InputAsset,
		Direction:    string(r.Direction),
		AmountIn:     r.AmountIn.String(),
		Intermediate: r.Intermediate.String(),
		Final:        r.Final.String(),
		Profit:       r.Profit.String(),
		ProfitTokens: decimal.NewFromBigInt(r.Profit.Big(), -int32(r.Decimals)).InexactFloat64(),
		Settled:      r.Succeeded(),
		RolledBack:   r.RolledBack,
		ErrorCode:    r.ErrorCode,
		StartedAtMs:  r.StartedAt.UnixMilli(),
		DurationUs:   r.Duration().Microseconds(),
	}
}

// Exporter writes receipts to Snappy-compressed Parquet files.
type Exporter struct {
	parallelism int64
}

func NewExporter() *Exporter {
	return &Exporter{parallelism: 4}
}

// Export writes receipts to path, replacing any existing file, and returns the row count.
func (e *Exporter) Export(path string, receipts []*domain.Receipt) (int, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, exportErr("create "+path, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(Row), e.parallelism)
	if err != nil {
		return 0, exportErr("create parquet writer", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range receipts {
		if err := pw.Write(NewRow(r)); err != nil {
			return 0, exportErr("write receipt "+r.ID, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return 0, exportErr("flush "+path, err)
	}
	return len(receipts), nil
}

// ReadRows loads every row of a file written by Export.
func (e *Exporter) ReadRows(path string) ([]Row, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, exportErr("open "+path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(Row), e.parallelism)
	if err != nil {
		return nil, exportErr("create parquet reader", err)
	}
	defer pr.ReadStop()

	rows := make([]Row, int(pr.GetNumRows()))
	if len(rows) == 0 {
		return rows, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, exportErr("read "+path, err)
	}
	return rows, nil
}

func exportErr(op string, err error) error {
	return apperror.New(apperror.CodeExportFailed, apperror.WithContext(op), apperror.WithCause(err))
}
