package models

// Card is a single owned card instance. Cards are immutable once minted;
// ownership lives in the custody store, not on the card.
type Card struct {
	CardID   string `json:"card_id"` // Globally unique identifier
	Name     string `json:"name"`
	Rarity   int    `json:"rarity"` // 1 (common) .. 5 (legendary)
	ImageRef string `json:"image_ref,omitempty"`
}
