package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

type entryHeader struct {
	EntryType string `json:"entryType"`
}

// Append adds exchanges to the snapshot for sessionID, creating the snapshot
// and the file when needed.
func Append(path, sessionID, document string, llm *LLMInfo, exchanges ...Exchange) error {
	if path == "" || sessionID == "" || len(exchanges) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	entries, err := loadEntries(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		entries = nil
	}

	updated := false
	for i, raw := range entries {
		entryType, err := detectEntryType(raw)
		if err != nil {
			return err
		}
		if entryType != entryTypeSession {
			continue
		}
		var snapshot Snapshot
		if err := json.Unmarshal(raw, &snapshot); err != nil {
			return err
		}
		if snapshot.SessionID != sessionID {
			continue
		}
		snapshot.Exchanges = append(snapshot.Exchanges, exchanges...)
		if llm != nil {
			snapshot.LLM = llm
		}
		raw, err = json.Marshal(snapshot)
		if err != nil {
			return err
		}
		entries[i] = raw
		updated = true
		break
	}
	if !updated {
		raw, err := json.Marshal(Snapshot{
			EntryType:  entryTypeSession,
			SessionID:  sessionID,
			Document:   document,
			CapturedAt: time.Now().UTC(),
			Exchanges:  exchanges,
			LLM:        llm,
		})
		if err != nil {
			return err
		}
		entries = append(entries, raw)
	}
	return writeEntries(path, entries)
}

// Load returns every stored session snapshot. Entries of other types are
// skipped.
func Load(path string) ([]Snapshot, error) {
	entries, err := loadEntries(path)
	if err != nil {
		return nil, err
	}
	snapshots := make([]Snapshot, 0, len(entries))
	for _, raw := range entries {
		entryType, err := detectEntryType(raw)
		if err != nil {
			return nil, err
		}
		if entryType != entryTypeSession {
			continue
		}
		var snapshot Snapshot
		if err := json.Unmarshal(raw, &snapshot); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func writeEntries(path string, entries []json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func loadEntries(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func detectEntryType(raw json.RawMessage) (string, error) {
	var header entryHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return "", err
	}
	return header.EntryType, nil
}
