package domain

import "time"

// DefaultChecklistItemType applies when an item is created without a type.
const DefaultChecklistItemType = "text"

// ChecklistTemplate is a versioned set of fields a crew fills in per installation.
type ChecklistTemplate struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Version     int       `json:"version"`
	Description *string   `json:"description"`
	Rules       any       `json:"rules"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Items []ChecklistItem `json:"items,omitempty"`
}

// ChecklistItem is one field of a template. Items are ordered by OrderIndex,
// ties broken by creation time.
type ChecklistItem struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"template_id"`
	Key        string    `json:"key"`
	Label      string    `json:"label"`
	Type       string    `json:"type"`
	Required   bool      `json:"required"`
	OrderIndex int       `json:"order_index"`
	Rules      any       `json:"rules"`
	HelpText   *string   `json:"help_text"`
	Options    any       `json:"options"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ChecklistResponse is the answer to one checklist item for one installation.
// The pair (InstallationID, ItemID) is unique.
type ChecklistResponse struct {
	ID             string     `json:"id"`
	InstallationID string     `json:"installation_id"`
	ItemID         string     `json:"item_id"`
	Value          any        `json:"value"`
	CompletedAt    *time.Time `json:"completed_at"`
	CreatedBy      *string    `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Item *ChecklistItem `json:"item,omitempty"`
}
