package domain

// Profile is a viewer profile offered on the "who's watching" gate.
type Profile struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Avatar string `json:"avatar" yaml:"avatar"`
	IsKid  bool   `json:"isKid,omitempty" yaml:"isKid,omitempty"`
}

// HeroVideo is one of the background video presets of the hero banner.
type HeroVideo struct {
	ID        string `json:"id" yaml:"id"`
	Label     string `json:"label" yaml:"label"`
	URL       string `json:"url" yaml:"url"`
	Thumbnail string `json:"thumbnail" yaml:"thumbnail"`
}
