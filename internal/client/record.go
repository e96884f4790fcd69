package client

import (
	"fmt"

	"pokedex/catalog/internal/domain"
)

// pokemonRecord mirrors the parts of GET /pokemon/{id} the catalog keeps.
type pokemonRecord struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Types []struct {
		Slot int `json:"slot"`
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
	} `json:"types"`
	Sprites struct {
		FrontDefault *string `json:"front_default"`
	} `json:"sprites"`
}

type pokemonList struct {
	Count int `json:"count"`
}

func (r *pokemonRecord) toEntry(position int) (domain.Entry, error) {
	name := domain.NormalizeName(r.Name)
	if name == "" {
		return domain.Entry{}, fmt.Errorf("record at position %d has no name", position)
	}

	types := make([]string, 0, len(r.Types))
	for _, t := range r.Types {
		if t.Type.Name != "" {
			types = append(types, t.Type.Name)
		}
	}

	var image string
	if r.Sprites.FrontDefault != nil {
		image = *r.Sprites.FrontDefault
	}

	return domain.Entry{
		Name:     name,
		Types:    types,
		Image:    image,
		Position: position,
	}, nil
}
