// Package report turns collected capture files into a z-score workbook: for
// each sample the cumulative mean of the ones count and its z-score against
// an unbiased source, plotted as a line chart.
package report

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Thiagojm/bgtrng/naming"
)

const (
	SheetName = "Zscore"

	headerSamples = "samples"
	headerTime    = "time"
)

// Row is one sample: its label, ones count, and the computed statistics.
type Row struct {
	Category       string
	Ones           int
	CumulativeMean float64
	ZScore         float64
}

// CountOnes returns the number of set bits among the first bitCount bits of
// buf, most significant bit first.
func CountOnes(buf []byte, bitCount int) int {
	if bitCount <= 0 || len(buf) == 0 {
		return 0
	}
	used := (bitCount + 7) / 8
	if used > len(buf) {
		used = len(buf)
		bitCount = used * 8
	}
	total := 0
	for _, b := range buf[:used-1] {
		total += bits.OnesCount8(b)
	}
	lastBits := bitCount - (used-1)*8
	mask := byte(0xFF) << (8 - lastBits)
	return total + bits.OnesCount8(buf[used-1]&mask)
}

// ReadBin reads raw blocks of blockBits bits and returns one row per block
// labelled with its 1-based index. A short trailing block is counted as is.
func ReadBin(r io.Reader, blockBits int) ([]Row, error) {
	if blockBits <= 0 || blockBits%8 != 0 {
		return nil, errors.New("block size must be a positive multiple of 8 bits for .bin files")
	}
	br := bufio.NewReader(r)
	buf := make([]byte, blockBits/8)
	var rows []Row
	for block := 1; ; block++ {
		n, err := io.ReadFull(br, buf)
		if n > 0 {
			rows = append(rows, Row{Category: strconv.Itoa(block), Ones: CountOnes(buf[:n], n*8)})
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return rows, nil
		default:
			return nil, err
		}
	}
}

// ReadCSV reads headerless "timestamp,ones" records. Timestamps are
// relabelled as HH:MM:SS when they parse.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			continue
		}
		field := strings.TrimSpace(rec[1])
		ones, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid ones value '%s': %w", field, err)
		}
		rows = append(rows, Row{Category: timeLabel(strings.TrimSpace(rec[0])), Ones: ones})
	}
}

var timeLayouts = []string{
	"20060102T15:04:05", // written by cmd/collect
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"15:04:05",
	"15:04",
}

func timeLabel(s string) string {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05")
		}
	}
	return s
}

// ZScores fills in the cumulative mean and z-score of rows in place:
//
//	z_i = (mean_i - n/2) / (sqrt(n/4) / sqrt(i+1))
//
// for blocks of n bits.
func ZScores(rows []Row, blockBits int) {
	if blockBits <= 0 {
		return
	}
	expectedMean := 0.5 * float64(blockBits)
	stdDev := math.Sqrt(0.25 * float64(blockBits))
	sum := 0
	for i := range rows {
		sum += rows[i].Ones
		k := float64(i + 1)
		rows[i].CumulativeMean = float64(sum) / k
		rows[i].ZScore = (rows[i].CumulativeMean - expectedMean) / (stdDev / math.Sqrt(k))
	}
}

// Workbook describes the sheet to write.
type Workbook struct {
	Title           string
	FirstHeader     string
	BlockBits       int
	IntervalSeconds int
	Rows            []Row
}

// Write saves the workbook with its chart to path.
func (w Workbook) Write(path string) error {
	if len(w.Rows) == 0 {
		return errors.New("no data to write")
	}
	f := excelize.NewFile()
	defer f.Close()

	if def := f.GetSheetName(0); def != SheetName {
		if _, err := f.NewSheet(SheetName); err != nil {
			return err
		}
		if err := f.DeleteSheet(def); err != nil {
			return err
		}
	}

	headers := []string{w.FirstHeader, "ones", "cumulative_mean", "z_test"}
	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return err
	}
	for i, r := range w.Rows {
		row := i + 2
		if err := f.SetCellStr(SheetName, cell(1, row), r.Category); err != nil {
			return err
		}
		if err := f.SetCellInt(SheetName, cell(2, row), r.Ones); err != nil {
			return err
		}
		if err := f.SetCellFloat(SheetName, cell(3, row), r.CumulativeMean, 6, 64); err != nil {
			return err
		}
		if err := f.SetCellFloat(SheetName, cell(4, row), r.ZScore, 6, 64); err != nil {
			return err
		}
	}

	last := len(w.Rows) + 1
	chart := &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$D$1", SheetName),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", SheetName, last),
			Values:     fmt.Sprintf("%s!$D$2:$D$%d", SheetName, last),
		}},
		Title:  []excelize.RichTextRun{{Text: w.Title}},
		Legend: excelize.ChartLegend{Position: "none"},
		XAxis: excelize.ChartAxis{Title: []excelize.RichTextRun{{
			Text: fmt.Sprintf("Number of Samples - one sample every %d second(s)", w.IntervalSeconds),
		}}},
		YAxis: excelize.ChartAxis{
			Title:          []excelize.RichTextRun{{Text: fmt.Sprintf("Z-score - Sample Size = %d bits", w.BlockBits)}},
			MajorGridLines: true,
		},
	}
	if err := f.AddChart(SheetName, "F2", chart); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// Generate reads a .bin or .csv capture named by the collection convention
// and writes the report next to it with an .xlsx extension. It returns the
// path written.
func Generate(inputPath string) (string, error) {
	capture, err := naming.ParseBaseName(inputPath)
	if err != nil {
		return "", err
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return "", err
	}
	defer in.Close()

	wb := Workbook{
		Title:           filepath.Base(inputPath),
		BlockBits:       capture.Bits,
		IntervalSeconds: capture.IntervalSeconds,
	}
	switch ext := strings.ToLower(filepath.Ext(inputPath)); ext {
	case ".bin":
		wb.FirstHeader = headerSamples
		wb.Rows, err = ReadBin(in, capture.Bits)
	case ".csv":
		wb.FirstHeader = headerTime
		wb.Rows, err = ReadCSV(in)
	default:
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(inputPath), err)
	}

	ZScores(wb.Rows, capture.Bits)
	out := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".xlsx"
	if err := wb.Write(out); err != nil {
		return "", err
	}
	return out, nil
}
