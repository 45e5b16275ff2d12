package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCountOnes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, CountOnes(nil, 8))
	assert.Equal(t, 16, CountOnes([]byte{0xFF, 0xFF}, 16))
	assert.Equal(t, 3, CountOnes([]byte{0xFF}, 3), "only the top bits count")
	assert.Equal(t, 9, CountOnes([]byte{0xFF, 0x80, 0xFF}, 9))
	assert.Equal(t, 8, CountOnes([]byte{0xFF}, 64), "clamped to the buffer")
}

func TestReadBin(t *testing.T) {
	t.Parallel()

	data := []byte{0xFF, 0x00, 0x0F, 0xF0, 0x01}
	rows, err := ReadBin(bytes.NewReader(data), 16)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Row{Category: "1", Ones: 8}, rows[0])
	assert.Equal(t, Row{Category: "2", Ones: 8}, rows[1])
	assert.Equal(t, Row{Category: "3", Ones: 1}, rows[2])

	_, err = ReadBin(bytes.NewReader(data), 12)
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	in := "20240309T07:05:01,130\n20240309T07:05:02, 120\nbad\n"
	rows, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{Category: "07:05:01", Ones: 130}, rows[0])
	assert.Equal(t, 120, rows[1].Ones)

	_, err = ReadCSV(strings.NewReader("x,notanumber\n"))
	assert.Error(t, err)
}

func TestZScores(t *testing.T) {
	t.Parallel()

	rows := []Row{{Ones: 4}, {Ones: 6}, {Ones: 8}}
	ZScores(rows, 8)

	assert.InDelta(t, 0, rows[0].ZScore, 1e-9)
	assert.InDelta(t, 5, rows[1].CumulativeMean, 1e-9)
	assert.InDelta(t, 1, rows[1].ZScore, 1e-9)
	assert.InDelta(t, 6, rows[2].CumulativeMean, 1e-9)
	assert.InDelta(t, 2*math.Sqrt(3)/math.Sqrt(2), rows[2].ZScore, 1e-9)
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "20240309T070501_sim_s16_i1.bin")
	require.NoError(t, os.WriteFile(in, []byte{0xFF, 0x00, 0xAA, 0xAA, 0x00, 0x00}, 0o600))

	out, err := Generate(in)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20240309T070501_sim_s16_i1.xlsx"), out)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"samples", "ones", "cumulative_mean", "z_test"}, rows[0])
	assert.Equal(t, "3", rows[3][0])
	assert.Equal(t, "0", rows[3][1])

	_, err = Generate(filepath.Join(dir, "capture.bin"))
	assert.Error(t, err, "name must follow the convention")
}
