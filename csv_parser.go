package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Contact is one broadcast recipient.
type Contact struct {
	Name        string
	PhoneNumber string
	Fields      map[string]string // extra CSV columns, exposed to the template
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

// headerIndex maps lower-cased, trimmed column names to their position.
type headerIndex map[string]int

func indexHeader(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(col))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// find returns the position of the first alias present, or -1.
func (h headerIndex) find(aliases ...string) int {
	for _, a := range aliases {
		if i, ok := h[a]; ok {
			return i
		}
	}
	return -1
}

// cell returns the trimmed value at i, or "" when the row is too short.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func ParseCSV(filePath string) ([]Contact, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	records, err := readCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	header := records[0]
	cols := indexHeader(header)
	nameIdx := cols.find("name")
	phoneIdx := cols.find("phone_number", "phone")
	if nameIdx == -1 || phoneIdx == -1 {
		return nil, fmt.Errorf("CSV must contain 'name' and 'phone_number' columns")
	}

	contacts := make([]Contact, 0, len(records)-1)
	for i, row := range records[1:] {
		line := i + 2
		if cell(row, nameIdx) == "" {
			continue
		}
		if len(row) <= nameIdx || len(row) <= phoneIdx {
			return nil, fmt.Errorf("row %d has insufficient columns", line)
		}

		contact := Contact{
			Name:        cell(row, nameIdx),
			PhoneNumber: cell(row, phoneIdx),
			Fields:      make(map[string]string),
		}
		if contact.PhoneNumber == "" {
			return nil, fmt.Errorf("row %d has empty phone number", line)
		}

		for j := range header {
			if j == nameIdx || j == phoneIdx {
				continue
			}
			// "value" -> "Value" so columns read as {{.Value}} in templates
			name := strings.TrimSpace(header[j])
			if name == "" {
				continue
			}
			name = strings.ToUpper(name[:1]) + name[1:]
			contact.Fields[name] = cell(row, j)
		}

		contacts = append(contacts, contact)
	}

	return contacts, nil
}
