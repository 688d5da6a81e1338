package models

import "time"

// ===== REQUEST DTOs =====

// CreateRecordRequest DTO for recording a movement.
// Quantity is signed unless Action is set, in which case its magnitude is used.
type CreateRecordRequest struct {
	KV        string     `json:"kv" validate:"required,notblank"`
	Material  string     `json:"material" validate:"required,notblank"`
	Type      string     `json:"type" validate:"required,notblank"`
	Quantity  int        `json:"quantity" validate:"ne=0,min=-2147483647,max=2147483647"`
	Action    string     `json:"action" validate:"omitempty,oneof=made sold"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// ===== RESPONSE DTOs =====

// CreateRecordResponse is returned after a movement is persisted.
type CreateRecordResponse struct {
	Record *Record `json:"record"`
	// Merged is true when the legacy merge write mode folded the delta into an existing row.
	Merged   bool     `json:"merged"`
	Warnings []string `json:"warnings,omitempty"`
}

// CatalogResponse lists the configurations the shop produces.
type CatalogResponse struct {
	KVOptions       []string            `json:"kv_options"`
	MaterialOptions []string            `json:"material_options"`
	Actions         []string            `json:"actions"`
	TypeOptions     map[string][]string `json:"type_options"`
	DefaultTypes    []string            `json:"default_types"`
	Enforcement     string              `json:"enforcement"`
}
