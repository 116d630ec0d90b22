package id

import "github.com/google/uuid"

func New() string {
	u, err := uuid.NewRandom()
	if err != nil {
		return "pixelgate-fallback-id"
	}
	return u.String()
}
