package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// PromptField asks for one form field. An empty answer keeps current; a
// single "-" clears the field.
func PromptField(in *bufio.Reader, out io.Writer, label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return current, err
	}
	line = strings.TrimRight(line, "\r\n")
	switch strings.TrimSpace(line) {
	case "":
		return current, nil
	case "-":
		return "", nil
	}
	return line, nil
}

// PromptYesNo asks a yes/no question. An empty answer keeps current.
func PromptYesNo(in *bufio.Reader, out io.Writer, label string, current bool) (bool, error) {
	def := "y/N"
	if current {
		def = "Y/n"
	}
	fmt.Fprintf(out, "%s [%s]: ", label, def)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return current, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	return current, nil
}
