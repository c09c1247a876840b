package storage

import (
	"encoding/json"
	"errors"

	"forwardlab/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps new records.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeSession(s model.SessionRecord) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSession(data []byte) (model.SessionRecord, error) {
	var session model.SessionRecord
	if err := json.Unmarshal(data, &session); err != nil {
		return model.SessionRecord{}, err
	}
	if err := checkVersion(session.VersionedRecord); err != nil {
		return model.SessionRecord{}, err
	}
	return session, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

func cloneSession(s model.SessionRecord) model.SessionRecord {
	s.Completed = append([]model.StepID(nil), s.Completed...)
	if s.Attempts != nil {
		attempts := make(map[model.StepID]int, len(s.Attempts))
		for id, n := range s.Attempts {
			attempts[id] = n
		}
		s.Attempts = attempts
	}
	return s
}
