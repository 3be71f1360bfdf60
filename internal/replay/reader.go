package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"ammLedger/internal/model"
)

// ReadInstructions loads an instruction JSONL file ordered by sequence number.
// Lines that fail to decode, lack a sequence number or repeat one are returned
// as decode errors.
func ReadInstructions(path string) ([]model.Instruction, []model.DecodeError, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		instructions []model.Instruction
		failures     []model.DecodeError
		lineNo       uint64
	)
	seen := make(map[uint64]struct{})
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var ins model.Instruction
		if err := json.Unmarshal(line, &ins); err != nil {
			failures = append(failures, model.DecodeError{Line: lineNo, Error: err.Error()})
			continue
		}
		if ins.Seq == 0 {
			failures = append(failures, model.DecodeError{Line: lineNo, Error: "missing seq"})
			continue
		}
		if _, ok := seen[ins.Seq]; ok {
			failures = append(failures, model.DecodeError{Line: lineNo, Seq: ins.Seq, Error: "duplicate seq"})
			continue
		}
		seen[ins.Seq] = struct{}{}
		instructions = append(instructions, ins)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan input: %w", err)
	}

	sort.Slice(instructions, func(i, j int) bool { return instructions[i].Seq < instructions[j].Seq })
	return instructions, failures, nil
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

func newJSONLWriter(path string) (*jsonlWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return &jsonlWriter{file: file, writer: bufio.NewWriter(file)}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
