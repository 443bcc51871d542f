package models

import "time"

// DataObject is the metadata row for one encrypted payload. The ciphertext
// lives in object storage under StorageKey; Checksum fingerprints the
// ciphertext for the integrity scanner.
type DataObject struct {
	ID         string
	CircleID   string
	Name       string
	StorageKey string
	Checksum   string
	Nonce      []byte
	CreatedAt  time.Time
}
