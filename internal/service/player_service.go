package service

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
)

var (
	ErrInvalidAccountID = errors.New("invalid account id")

	accountIDPattern = regexp.MustCompile(`^[0-9]{5,16}$`)
)

// Player is the profile shown on the landing page before redemption. There is
// no upstream game API in this deployment, so the profile is simulated from
// the account id.
type Player struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Region   string `json:"region"`
	Level    int    `json:"level"`
	Liked    int    `json:"liked"`
	Avatar   string `json:"avatar"`
	Banner   string `json:"banner"`
}

type PlayerService struct{}

func NewPlayerService() *PlayerService {
	return &PlayerService{}
}

func (s *PlayerService) Lookup(accountID string) (*Player, error) {
	if !accountIDPattern.MatchString(accountID) {
		return nil, ErrInvalidAccountID
	}
	return &Player{
		ID:       accountID,
		Nickname: fmt.Sprintf("Player_%s", accountID[:5]),
		Region:   defaultRegion,
		Level:    rand.IntN(70) + 1,
		Liked:    rand.IntN(1000),
		Avatar:   "default",
		Banner:   "default",
	}, nil
}
