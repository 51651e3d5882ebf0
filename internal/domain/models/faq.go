package models

import "time"

// FAQ представляет запись FAQ, подлежащую выгрузке в Brain Commerce
type FAQ struct {
	ID           string    `json:"id"`
	LastModified time.Time `json:"last_modified"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
}

// RecordID реализует CatalogRecord
func (f *FAQ) RecordID() string { return f.ID }

// RecordLastModified реализует CatalogRecord
func (f *FAQ) RecordLastModified() time.Time { return f.LastModified }

// RecordType реализует CatalogRecord
func (f *FAQ) RecordType() RecordType { return FaqRecordType }
