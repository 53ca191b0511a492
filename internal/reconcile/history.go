package reconcile

import (
	"time"

	"github.com/emsgrid/vitals-relay/pkg/file"
)

// History entry types.
const (
	EntryCriticalVitals = "critical_vitals"
	EntryEmergencyAlert = "emergency_alert"
)

// HistoryEntry is one row of the persisted alert history.
type HistoryEntry struct {
	Type        string     `json:"type"`
	AlertID     string     `json:"alertId,omitempty"`
	PatientID   string     `json:"patientId"`
	PatientName string     `json:"patientName"`
	Condition   string     `json:"condition,omitempty"`
	AmbulanceID string     `json:"ambulanceId,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	ReceivedAt  time.Time  `json:"receivedAt"`
	Status      string     `json:"status"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

// HistoryStore persists the bounded alert history between sessions. The
// console treats it as an opaque key-value slot: load everything, save
// everything.
type HistoryStore interface {
	Load() ([]HistoryEntry, error)
	Save(entries []HistoryEntry) error
}

// FileHistoryStore keeps the history as a JSON document on disk.
type FileHistoryStore struct {
	Path       string
	FileClient file.FileOperations
}

// NewFileHistoryStore creates a store backed by the given path.
func NewFileHistoryStore(path string, fileClient file.FileOperations) *FileHistoryStore {
	return &FileHistoryStore{Path: path, FileClient: fileClient}
}

// Load reads the persisted history. A missing file is an empty history,
// not an error.
func (s *FileHistoryStore) Load() ([]HistoryEntry, error) {
	exists, err := s.FileClient.IsFileExists(s.Path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	var entries []HistoryEntry
	if err := s.FileClient.ReadJsonFile(s.Path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Save writes the full history document atomically.
func (s *FileHistoryStore) Save(entries []HistoryEntry) error {
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return s.FileClient.WriteJsonFile(s.Path, entries)
}

// memoryHistoryStore is a fallback when no path is configured.
type memoryHistoryStore struct {
	entries []HistoryEntry
}

func (s *memoryHistoryStore) Load() ([]HistoryEntry, error) {
	return append([]HistoryEntry(nil), s.entries...), nil
}

func (s *memoryHistoryStore) Save(entries []HistoryEntry) error {
	s.entries = append([]HistoryEntry(nil), entries...)
	return nil
}
