package main

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type CompletedContact struct {
	Name        string
	PhoneNumber string
	Hash        string
	Timestamp   string
}

// CompletedTracker remembers which contacts already received the current
// template, so an interrupted broadcast can be rerun without double sends.
type CompletedTracker struct {
	mu              sync.Mutex
	filePath        string
	completed       map[string]CompletedContact // key: hash
	messageTemplate string
	now             func() time.Time
}

func NewCompletedTracker(filePath string, messageTemplate string) (*CompletedTracker, error) {
	tracker := &CompletedTracker{
		filePath:        filePath,
		completed:       make(map[string]CompletedContact),
		messageTemplate: messageTemplate,
		now:             time.Now,
	}

	if err := tracker.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load completed contacts: %w", err)
		}
	}

	return tracker, nil
}

// generateHash identifies a (contact, template) pair. Fields are hashed in
// key order; map iteration order would make the hash unstable.
func (ct *CompletedTracker) generateHash(contact Contact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s", contact.PhoneNumber, contact.Name, ct.messageTemplate)

	keys := make([]string, 0, len(contact.Fields))
	for k := range contact.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s:%s", k, contact.Fields[k])
	}

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

func (ct *CompletedTracker) load() error {
	file, err := os.Open(ct.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	records, err := readCSV(file)
	if err != nil {
		return fmt.Errorf("failed to read completed CSV: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	cols := indexHeader(records[0])
	nameIdx := cols.find("name")
	phoneIdx := cols.find("phone_number", "phone")
	hashIdx := cols.find("hash")
	timestampIdx := cols.find("timestamp", "date")
	if nameIdx == -1 || phoneIdx == -1 || hashIdx == -1 {
		return fmt.Errorf("completed CSV must contain 'name', 'phone_number', and 'hash' columns")
	}

	for _, row := range records[1:] {
		hash := cell(row, hashIdx)
		if hash == "" {
			continue
		}
		ct.completed[hash] = CompletedContact{
			Name:        cell(row, nameIdx),
			PhoneNumber: cell(row, phoneIdx),
			Hash:        hash,
			Timestamp:   cell(row, timestampIdx),
		}
	}

	logger.Info("loaded completed contacts",
		zap.Int("count", len(ct.completed)),
		zap.String("path", ct.filePath))
	return nil
}

func (ct *CompletedTracker) IsCompleted(contact Contact) bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	hash := ct.generateHash(contact)
	_, exists := ct.completed[hash]
	return exists
}

func (ct *CompletedTracker) MarkCompleted(contact Contact) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	hash := ct.generateHash(contact)

	completedContact := CompletedContact{
		Name:        contact.Name,
		PhoneNumber: contact.PhoneNumber,
		Hash:        hash,
		Timestamp:   ct.now().Format("2006-01-02 15:04:05"),
	}
	ct.completed[hash] = completedContact

	return ct.appendToFile(completedContact)
}

func (ct *CompletedTracker) appendToFile(contact CompletedContact) error {
	fileExists := true
	if _, err := os.Stat(ct.filePath); errors.Is(err, os.ErrNotExist) {
		fileExists = false
	}

	file, err := os.OpenFile(ct.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open completed CSV: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if !fileExists {
		if err := writer.Write([]string{"name", "phone_number", "hash", "timestamp"}); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	record := []string{contact.Name, contact.PhoneNumber, contact.Hash, contact.Timestamp}
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("failed to write CSV record: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush completed CSV: %w", err)
	}
	return nil
}

func (ct *CompletedTracker) CompletedCount() int {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return len(ct.completed)
}
