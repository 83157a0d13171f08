package envsync

import "fmt"

// Snapshot is a complete key-value map of an environment's variables at
// one point in time. Plaintext locally, encrypted remotely.
type Snapshot map[string]string

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// EncryptedRecord is one variable as stored remotely: the plaintext key
// plus the encrypted value with its per-record IV and authentication tag.
// IsSecret is a heuristic classification carried for reporting; it is not
// security-enforced.
type EncryptedRecord struct {
	Key        string `json:"key"`
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"authTag"`
	IsSecret   bool   `json:"isSecret"`
}

// EncryptedSnapshot is the unit exchanged with the remote store. A push
// replaces the entire remote set for a (project, environment) pair.
type EncryptedSnapshot []EncryptedRecord

// EncryptSnapshot encrypts every value in a plaintext snapshot. Records
// are produced in sorted key order so pushes are deterministic apart from
// the per-record IVs.
func EncryptSnapshot(cipher *Cipher, snap Snapshot) (EncryptedSnapshot, error) {
	records := make(EncryptedSnapshot, 0, len(snap))
	for _, key := range sortedKeys(snap) {
		value := snap[key]

		ev, err := cipher.Encrypt(value)
		if err != nil {
			return nil, err
		}

		records = append(records, EncryptedRecord{
			Key:        key,
			Ciphertext: ev.Ciphertext,
			IV:         ev.IV,
			AuthTag:    ev.AuthTag,
			IsSecret:   ClassifyAsSecret(key, value),
		})
	}

	return records, nil
}

// DecryptSnapshot decrypts every record into a plaintext snapshot. The
// first record that fails authentication aborts the whole decode: a
// partially decrypted snapshot must never be merged into the local file.
func DecryptSnapshot(cipher *Cipher, records EncryptedSnapshot) (Snapshot, error) {
	snap := make(Snapshot, len(records))
	for _, rec := range records {
		plain, err := cipher.Decrypt(EncryptedValue{
			Ciphertext: rec.Ciphertext,
			IV:         rec.IV,
			AuthTag:    rec.AuthTag,
		})
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", rec.Key, err)
		}

		snap[rec.Key] = plain
	}

	return snap, nil
}
