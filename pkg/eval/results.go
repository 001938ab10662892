package eval

import (
	"fmt"
	"os"
	"strconv"
)

// Result is the score of one held-out subject.
type Result struct {
	Method   string
	Scorer   string
	Subject  int
	Accuracy float64
}

func NewResult(method string, k int, subject int, accuracy float64) Result {
	return Result{
		Method:   method,
		Scorer:   fmt.Sprintf("%dnn", k),
		Subject:  subject,
		Accuracy: accuracy,
	}
}

// Line formats the result as `<method>, <k>nn,<subject>,<accuracy>`.
func (r Result) Line() string {
	return r.Method + ", " + r.Scorer + "," + strconv.Itoa(r.Subject) + "," + strconv.FormatFloat(r.Accuracy, 'f', -1, 64)
}

// AppendResult appends line and a newline to the file at path, creating it
// if needed.
func AppendResult(path string, line string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(line + "\n"); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
