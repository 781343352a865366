package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/natural-twenty/api/internal/model"
	"github.com/freeeve/natural-twenty/api/internal/repository"
	"github.com/freeeve/natural-twenty/api/pkg/dice"
)

// DiceService wraps the dice engine with adventure roll history and
// real-time fanout.
type DiceService struct {
	dice          *dice.Service
	adventureRepo repository.AdventureRepository
	cache         repository.CombatCache
	broadcaster   Broadcaster
}

// NewDiceService creates a DiceService. broadcaster may be nil.
func NewDiceService(engine *dice.Service, adventureRepo repository.AdventureRepository, cache repository.CombatCache, broadcaster Broadcaster) *DiceService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &DiceService{
		dice:          engine,
		adventureRepo: adventureRepo,
		cache:         cache,
		broadcaster:   broadcaster,
	}
}

// Roll evaluates a dice expression once.
func (s *DiceService) Roll(expression string) (*model.RollView, error) {
	result, err := s.dice.Roll(expression)
	if err != nil {
		return nil, err
	}
	view := model.NewRollView(result)
	return &view, nil
}

// RollForAdventure evaluates a dice expression and records it in the
// adventure's recent roll history. History failures are logged, not
// returned; the roll itself already succeeded.
func (s *DiceService) RollForAdventure(ctx context.Context, adventureID, expression string) (*model.RollView, error) {
	adventure, err := s.adventureRepo.FindByID(ctx, adventureID)
	if err != nil {
		return nil, err
	}
	if adventure == nil {
		return nil, ErrAdventureNotFound
	}

	view, err := s.Roll(expression)
	if err != nil {
		return nil, err
	}

	record := model.RollRecord{
		Expression: view.Expression,
		FinalTotal: view.FinalTotal,
		Rolls:      view.IndividualRolls,
		RolledAt:   time.Now().UTC(),
	}
	if raw, err := json.Marshal(record); err == nil {
		if err := s.cache.PushRoll(ctx, adventureID, raw); err != nil {
			log.Warn().Err(err).Str("adventureId", adventureID).Msg("failed to record roll history")
		}
	}

	s.broadcaster.BroadcastAdventureEvent(adventureID, "dice_rolled", view)
	return view, nil
}

// RecentRolls returns the adventure's latest rolls, newest first.
func (s *DiceService) RecentRolls(ctx context.Context, adventureID string, limit int64) ([]model.RollRecord, error) {
	adventure, err := s.adventureRepo.FindByID(ctx, adventureID)
	if err != nil {
		return nil, err
	}
	if adventure == nil {
		return nil, ErrAdventureNotFound
	}

	raws, err := s.cache.RecentRolls(ctx, adventureID, limit)
	if err != nil {
		return nil, err
	}
	records := make([]model.RollRecord, 0, len(raws))
	for _, raw := range raws {
		var r model.RollRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			log.Warn().Err(err).Str("adventureId", adventureID).Msg("skipping malformed roll record")
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// Validate parses a dice expression without rolling it.
func (s *DiceService) Validate(expression string) (*model.ExpressionView, error) {
	parsed, err := s.dice.ValidateExpression(expression)
	if err != nil {
		return nil, err
	}
	view := model.NewExpressionView(parsed)
	return &view, nil
}

// Stats computes the minimum, maximum and mean totals of a dice expression.
func (s *DiceService) Stats(expression string) (*model.StatsView, error) {
	stats, err := s.dice.Statistics(expression)
	if err != nil {
		return nil, err
	}
	return &model.StatsView{
		Expression: expression,
		Min:        stats.Min,
		Max:        stats.Max,
		Mean:       stats.Mean,
	}, nil
}
