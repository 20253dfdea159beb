package session

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var reportHeader = []string{
	"Name", "Activation", "Schedule", "LR", "Epochs", "Trained", "End Time", "SecondsToTrain", "Accuracy", "MeanError",
}

// Record is one row of the run report.
type Record struct {
	Name       string
	Activation string
	Schedule   []int
	Rate       float64
	Epochs     int
	Trained    int
	End        time.Time
	Duration   time.Duration
	Result     CheckResult
}

func (r Record) fields() []string {
	sizes := make([]string, len(r.Schedule))
	for i, n := range r.Schedule {
		sizes[i] = strconv.Itoa(n)
	}
	return []string{
		r.Name,
		r.Activation,
		strings.Join(sizes, ","),
		strconv.FormatFloat(r.Rate, 'f', 4, 64),
		strconv.Itoa(r.Epochs),
		strconv.Itoa(r.Trained),
		strconv.FormatInt(r.End.Unix(), 10),
		strconv.FormatFloat(r.Duration.Seconds(), 'f', 1, 64),
		strconv.FormatFloat(r.Result.Accuracy, 'f', 2, 64),
		strconv.FormatFloat(r.Result.MeanError, 'f', 5, 64),
	}
}

// AppendReport adds r to the CSV file at path, writing the header first when
// the file is new.
func AppendReport(path string, r Record) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return errors.Wrap(err, "creating report directory")
		}
	}
	var needsHeader bool
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "opening report")
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if needsHeader {
		if err := w.Write(reportHeader); err != nil {
			return errors.Wrap(err, "writing csv headers")
		}
	}
	if err := w.Write(r.fields()); err != nil {
		return errors.Wrap(err, "writing csv record")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "error writing csv")
	}
	return file.Close()
}
