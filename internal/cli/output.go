package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// emptyCell заменяет пустые значения в таблицах.
const emptyCell = "-"

// Output печатает результаты команд: таблицей для человека или JSON
// для скриптов. Сообщения о ходе работы идут в stderr, чтобы stdout
// оставался пригодным для конвейеров.
type Output struct {
	jsonMode bool
	stdout   io.Writer
	stderr   io.Writer
}

// NewOutputTo создаёт Output с заданными writers.
func NewOutputTo(jsonMode bool, stdout, stderr io.Writer) *Output {
	return &Output{
		jsonMode: jsonMode,
		stdout:   stdout,
		stderr:   stderr,
	}
}

// Print выводит v как JSON в режиме --json, иначе строки таблицы.
func (o *Output) Print(headers []string, rows [][]string, v any) {
	if o.jsonMode {
		o.writeJSON(v)
		return
	}
	if len(rows) == 0 {
		o.Notice("No results")
		return
	}
	o.table(headers, rows)
}

// Notice пишет сообщение в stderr.
func (o *Output) Notice(format string, args ...any) {
	fmt.Fprintf(o.stderr, format+"\n", args...)
}

func (o *Output) table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(headers, "\t")))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			if c == "" {
				c = emptyCell
			}
			cells[i] = c
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

func (o *Output) writeJSON(v any) {
	enc := json.NewEncoder(o.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		o.Notice("Error: encode output: %v", err)
	}
}
