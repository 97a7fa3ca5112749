package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "json", input: "json", want: FormatJSON},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "yaml", input: "yaml", want: FormatYAML},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  table  ", want: FormatTable},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type shardRow struct {
	Name    string `json:"name" yaml:"name"`
	Tensors int    `json:"tensors" yaml:"tensors"`
}

type shardList []shardRow

func (l shardList) Headers() []string { return []string{"Shard", "Tensors"} }
func (l shardList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{r.Name, Count(uint64(r.Tensors))})
	}
	return rows
}
func (l shardList) NumericColumns() []int { return []int{1} }

type report struct {
	Repo   string    `json:"repo" yaml:"repo"`
	Shards shardList `json:"shards" yaml:"shards"`
}

func (r report) Pairs() [][2]string    { return [][2]string{{"Repository", r.Repo}} }
func (r report) Headers() []string     { return r.Shards.Headers() }
func (r report) Rows() [][]string      { return r.Shards.Rows() }
func (r report) NumericColumns() []int { return r.Shards.NumericColumns() }

func sampleReport() report {
	return report{
		Repo: "org/model",
		Shards: shardList{
			{Name: "model-00001-of-00002.safetensors", Tensors: 1200},
			{Name: "model-00002-of-00002.safetensors", Tensors: 7},
		},
	}
}

func TestPrinterTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "Repository")
	assert.Contains(t, out, "org/model")
	assert.Contains(t, out, "SHARD")
	assert.Contains(t, out, "1,200")
	assert.Less(t, strings.Index(out, "org/model"), strings.Index(out, "SHARD"),
		"key/value block precedes the table")
}

func TestPrinterTableRightAlignsNumbers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, sampleReport().Shards))

	var short string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "00002-of") {
			short = line
		}
	}
	require.NotEmpty(t, short)
	assert.True(t, strings.HasSuffix(strings.TrimRight(short, " "), "    7"),
		"short count is padded on the left: %q", short)
}

func TestPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatJSON, false).Print(sampleReport()))

	out := buf.String()
	assert.Contains(t, out, `"repo": "org/model"`)
	assert.Contains(t, out, `"tensors": 1200`)
}

func TestPrinterYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatYAML, false).Print(sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "repo: org/model")
	assert.Contains(t, out, "- name: model-00001-of-00002.safetensors")
}

func TestPrinterTableFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(shardRow{Name: "a", Tensors: 1}))
	assert.Contains(t, buf.String(), `"name": "a"`)
}

func TestPrintJSONKeepsAngleBrackets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]string{"dtype": "<f2"}))
	assert.Contains(t, buf.String(), `"<f2"`)
}

func TestPrinterMessages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)
	p.Success("saved")
	p.Warning("careful")
	assert.Equal(t, "saved\ncareful\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, FormatTable, true).Success("saved")
	assert.Equal(t, "\033[32msaved\033[0m\n", buf.String())
}

func TestTableData(t *testing.T) {
	table := NewTableData("Name", "Size").AlignRight(1)
	table.AddRow("a", "1")

	assert.Equal(t, []string{"Name", "Size"}, table.Headers())
	assert.Equal(t, [][]string{{"a", "1"}}, table.Rows())
	assert.Equal(t, []int{1}, table.NumericColumns())
}

func TestCount(t *testing.T) {
	assert.Equal(t, "0", Count(0))
	assert.Equal(t, "999", Count(999))
	assert.Equal(t, "1,000", Count(1000))
	assert.Equal(t, "12,345", Count(12345))
	assert.Equal(t, "6,738,415,616", Count(6738415616))
}

func TestParams(t *testing.T) {
	assert.Equal(t, "512", Params(512))
	assert.Equal(t, "1.50K", Params(1500))
	assert.Equal(t, "124.44M", Params(124439808))
	assert.Equal(t, "6.74B", Params(6738415616))
}

func TestShape(t *testing.T) {
	assert.Equal(t, "[]", Shape(nil))
	assert.Equal(t, "[4096, 11008]", Shape([]uint64{4096, 11008}))
}

func TestPrinterTableOmitsEmptyTableAfterPairs(t *testing.T) {
	var buf bytes.Buffer
	r := sampleReport()
	r.Shards = nil
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(r))

	out := buf.String()
	assert.Contains(t, out, "org/model")
	assert.NotContains(t, out, "SHARD")
}
