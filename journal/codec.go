package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCorrupt is returned by decode when a journal file's length prefix does
// not match its payload, or the gob payload cannot be decoded.
var ErrCorrupt = errors.New("journal: corrupt snapshot")

type snapshot struct {
	Entries map[string]map[string]*Entry
}

// encode renders entries as a length-prefixed gob payload: a 4-byte
// little-endian length followed by that many bytes of gob-encoded snapshot.
func encode(entries map[string]map[string]*Entry) ([]byte, error) {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(snapshot{Entries: entries}); err != nil {
		return nil, fmt.Errorf("journal: encoding snapshot: %w", err)
	}
	out := make([]byte, 4+body.Len())
	binary.LittleEndian.PutUint32(out[:4], uint32(body.Len()))
	copy(out[4:], body.Bytes())
	return out, nil
}

// decode parses a length-prefixed gob payload produced by encode.
func decode(data []byte) (map[string]map[string]*Entry, error) {
	if len(data) < 4 {
		return nil, ErrCorrupt
	}
	length := binary.LittleEndian.Uint32(data[:4])
	payload := data[4:]
	if uint32(len(payload)) != length {
		return nil, ErrCorrupt
	}
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if snap.Entries == nil {
		snap.Entries = map[string]map[string]*Entry{}
	}
	return snap.Entries, nil
}

// writeFileAtomic writes data to path via a temp file in the same directory
// followed by os.Rename, so an observer never sees a partially written
// snapshot: the path is either the previous good copy or the new one.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("journal: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("journal: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("journal: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("journal: renaming temp file into place: %w", err)
	}
	return nil
}

// readFile returns the file's contents, or (nil, nil) if it does not exist.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
