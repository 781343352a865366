package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/natural-twenty/api/internal/model"
	"github.com/freeeve/natural-twenty/api/internal/repository"
	"github.com/freeeve/natural-twenty/api/pkg/combat"
	"github.com/freeeve/natural-twenty/api/pkg/dice"
)

var (
	ErrAdventureNotFound = errors.New("adventure not found")
	ErrEncounterNotFound = errors.New("encounter not found")
	ErrCharacterNotFound = errors.New("character not found")
	ErrEnemyNotFound     = errors.New("enemy not found")
	ErrCombatantNotFound = errors.New("combatant not found")
	ErrNotYourTurn       = errors.New("not this combatant's turn")
	ErrCombatEnded       = errors.New("combat has already ended")
	ErrCombatInProgress  = errors.New("adventure already has an active encounter")
)

// CombatService orchestrates encounters: creation, turn resolution, and
// the stance logic that drives enemy turns.
type CombatService struct {
	encounterRepo repository.EncounterRepository
	adventureRepo repository.AdventureRepository
	characterRepo repository.CharacterRepository
	enemyRepo     repository.EnemyRepository
	cache         repository.CombatCache
	dice          *dice.Service
	broadcaster   Broadcaster

	// encounterLocks serializes turn resolution per encounter within this
	// process. Writers on other instances are caught by the version check
	// in EncounterRepository.Update.
	encounterLocks sync.Map
}

// NewCombatService creates a CombatService. broadcaster may be nil.
func NewCombatService(encounterRepo repository.EncounterRepository, adventureRepo repository.AdventureRepository, characterRepo repository.CharacterRepository, enemyRepo repository.EnemyRepository, cache repository.CombatCache, engine *dice.Service, broadcaster Broadcaster) *CombatService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &CombatService{
		encounterRepo: encounterRepo,
		adventureRepo: adventureRepo,
		characterRepo: characterRepo,
		enemyRepo:     enemyRepo,
		cache:         cache,
		dice:          engine,
		broadcaster:   broadcaster,
	}
}

func (s *CombatService) encounterLock(encounterID string) *sync.Mutex {
	lock, _ := s.encounterLocks.LoadOrStore(encounterID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Initiate builds an encounter from character sheets and enemy stat
// blocks, rolls initiative for everyone, and starts combat. Listing an
// enemy id more than once spawns that many instances. An adventure can
// run only one encounter at a time.
func (s *CombatService) Initiate(ctx context.Context, adventureID string, characterIDs, enemyIDs []string) (*model.EncounterView, error) {
	adventure, err := s.adventureRepo.FindByID(ctx, adventureID)
	if err != nil {
		return nil, err
	}
	if adventure == nil {
		return nil, ErrAdventureNotFound
	}

	active, err := s.encounterRepo.FindActiveByAdventure(ctx, adventureID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrCombatInProgress
	}

	if len(characterIDs) == 0 || len(enemyIDs) == 0 {
		return nil, fmt.Errorf("%w: encounter needs at least one character and one enemy", combat.ErrValidation)
	}

	combatants, err := s.buildCombatants(ctx, characterIDs, enemyIDs)
	if err != nil {
		return nil, err
	}

	enc, err := combat.NewEncounter(uuid.NewString(), adventureID, combatants)
	if err != nil {
		return nil, err
	}
	if err := enc.StartCombat(combat.ComputeOrder(enc.Combatants)); err != nil {
		return nil, err
	}
	if err := s.encounterRepo.Create(ctx, enc); err != nil {
		return nil, err
	}

	view := model.NewEncounterView(enc)
	s.cacheSnapshot(ctx, enc.ID, view)
	s.broadcaster.BroadcastAdventureEvent(adventureID, "combat_started", view)

	log.Info().
		Str("encounterId", enc.ID).
		Str("adventureId", adventureID).
		Int("combatants", len(enc.Combatants)).
		Msg("combat started")

	return &view, nil
}

// buildCombatants resolves the requested sheets and stat blocks into
// freshly rolled combatants.
func (s *CombatService) buildCombatants(ctx context.Context, characterIDs, enemyIDs []string) ([]*combat.Combatant, error) {
	characters, err := s.characterRepo.FindByIDs(ctx, characterIDs)
	if err != nil {
		return nil, err
	}
	charByID := make(map[string]model.Character, len(characters))
	for _, ch := range characters {
		charByID[ch.ID] = ch
	}

	enemies, err := s.enemyRepo.FindByIDs(ctx, enemyIDs)
	if err != nil {
		return nil, err
	}
	enemyByID := make(map[string]model.Enemy, len(enemies))
	for _, en := range enemies {
		enemyByID[en.ID] = en
	}

	combatants := make([]*combat.Combatant, 0, len(characterIDs)+len(enemyIDs))
	for _, id := range characterIDs {
		ch, ok := charByID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrCharacterNotFound, id)
		}
		roll, tieBreak, err := s.rollInitiative()
		if err != nil {
			return nil, err
		}
		c, err := combat.NewCharacterCombatant(uuid.NewString(), combat.CharacterProfile{
			ID:               ch.ID,
			Name:             ch.Name,
			MaxHealth:        ch.MaxHealth,
			ArmorClass:       ch.ArmorClass,
			Strength:         ch.Strength,
			Dexterity:        ch.Dexterity,
			WeaponDescriptor: ch.Weapon,
		}, roll, tieBreak)
		if err != nil {
			return nil, err
		}
		combatants = append(combatants, c)
	}

	// Number duplicate enemies so "goblin, goblin" reads as Goblin 1 and
	// Goblin 2 in the snapshot.
	requested := make(map[string]int, len(enemyIDs))
	for _, id := range enemyIDs {
		requested[id]++
	}
	spawned := make(map[string]int, len(requested))
	for _, id := range enemyIDs {
		en, ok := enemyByID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrEnemyNotFound, id)
		}
		spawned[id]++
		name := en.Name
		if requested[id] > 1 {
			name = fmt.Sprintf("%s %d", en.Name, spawned[id])
		}
		roll, tieBreak, err := s.rollInitiative()
		if err != nil {
			return nil, err
		}
		c, err := combat.NewEnemyCombatant(uuid.NewString(), combat.EnemyProfile{
			ID:               en.ID,
			Name:             name,
			MaxHealth:        en.MaxHealth,
			ArmorClass:       en.ArmorClass,
			Strength:         en.Strength,
			Dexterity:        en.Dexterity,
			WeaponDescriptor: en.Weapon,
			FleeThreshold:    en.FleeThreshold,
			Resistance:       combat.Resistance(en.Resistance),
		}, roll, tieBreak)
		if err != nil {
			return nil, err
		}
		combatants = append(combatants, c)
	}
	return combatants, nil
}

// rollInitiative returns a d20 initiative roll and a stable tiebreak key.
func (s *CombatService) rollInitiative() (int, int, error) {
	roll, err := s.dice.Roll("1d20")
	if err != nil {
		return 0, 0, err
	}
	tieBreak, err := s.dice.Roll("1d1000")
	if err != nil {
		return 0, 0, err
	}
	return roll.FinalTotal, tieBreak.FinalTotal, nil
}

// GetStatus returns the encounter snapshot, serving from cache when warm.
func (s *CombatService) GetStatus(ctx context.Context, encounterID string) (*model.EncounterView, error) {
	if raw, err := s.cache.GetSnapshot(ctx, encounterID); err == nil && raw != nil {
		var view model.EncounterView
		if err := json.Unmarshal(raw, &view); err == nil {
			return &view, nil
		}
		log.Warn().Str("encounterId", encounterID).Msg("discarding malformed combat snapshot")
	}

	enc, err := s.encounterRepo.FindByID(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, ErrEncounterNotFound
	}
	view := model.NewEncounterView(enc)
	s.cacheSnapshot(ctx, enc.ID, view)
	return &view, nil
}

// ResolveTurn resolves one attack by the combatant whose turn it is,
// then advances the turn or ends the combat.
func (s *CombatService) ResolveTurn(ctx context.Context, encounterID, attackerID, targetID string) (*model.TurnResult, error) {
	lock := s.encounterLock(encounterID)
	lock.Lock()
	defer lock.Unlock()

	enc, err := s.loadActiveEncounter(ctx, encounterID)
	if err != nil {
		return nil, err
	}

	attacker := enc.CombatantByID(attackerID)
	if attacker == nil {
		return nil, ErrCombatantNotFound
	}
	if cur := enc.CurrentCombatant(); cur == nil || cur.ID != attacker.ID {
		return nil, ErrNotYourTurn
	}
	target := enc.CombatantByID(targetID)
	if target == nil {
		return nil, ErrCombatantNotFound
	}
	if !attacker.OpposedTo(target) {
		return nil, fmt.Errorf("%w: cannot attack an ally", combat.ErrInvalidTarget)
	}

	attackView, err := s.performAttack(attacker, target)
	if err != nil {
		return nil, err
	}
	return s.finishTurn(ctx, enc, attacker.ID, combat.ActionAttack, attackView)
}

// ResolveAITurn plays the current enemy's turn: evaluate its stance,
// pick a move, and resolve it.
func (s *CombatService) ResolveAITurn(ctx context.Context, encounterID string) (*model.TurnResult, error) {
	lock := s.encounterLock(encounterID)
	lock.Lock()
	defer lock.Unlock()

	enc, err := s.loadActiveEncounter(ctx, encounterID)
	if err != nil {
		return nil, err
	}

	actor := enc.CurrentCombatant()
	if actor == nil || actor.Type != combat.TypeEnemy {
		return nil, ErrNotYourTurn
	}

	state := combat.EvaluateAIState(actor)
	actor.AIState = state
	action := combat.SelectAIAction(actor, state, enc.Opponents(actor))

	switch action.Type {
	case combat.ActionAttack:
		target := enc.CombatantByID(action.TargetID)
		if target == nil {
			return nil, ErrCombatantNotFound
		}
		attackView, err := s.performAttack(actor, target)
		if err != nil {
			return nil, err
		}
		return s.finishTurn(ctx, enc, actor.ID, combat.ActionAttack, attackView)
	case combat.ActionFlee:
		actor.MarkFled()
		return s.finishTurn(ctx, enc, actor.ID, combat.ActionFlee, nil)
	default:
		return s.finishTurn(ctx, enc, actor.ID, combat.ActionPass, nil)
	}
}

// Flee removes the combatant from the fight on its own turn. Fled
// combatants keep their health but can never rejoin.
func (s *CombatService) Flee(ctx context.Context, encounterID, combatantID string) (*model.TurnResult, error) {
	lock := s.encounterLock(encounterID)
	lock.Lock()
	defer lock.Unlock()

	enc, err := s.loadActiveEncounter(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	actor, err := currentActor(enc, combatantID)
	if err != nil {
		return nil, err
	}
	actor.MarkFled()
	return s.finishTurn(ctx, enc, actor.ID, combat.ActionFlee, nil)
}

// Defend puts the combatant in a guarded stance until the start of its
// next turn and passes the turn. Attacks against it roll at disadvantage.
func (s *CombatService) Defend(ctx context.Context, encounterID, combatantID string) (*model.TurnResult, error) {
	lock := s.encounterLock(encounterID)
	lock.Lock()
	defer lock.Unlock()

	enc, err := s.loadActiveEncounter(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	actor, err := currentActor(enc, combatantID)
	if err != nil {
		return nil, err
	}
	actor.Defend()
	return s.finishTurn(ctx, enc, actor.ID, combat.ActionDefend, nil)
}

// loadActiveEncounter fetches an encounter that must still be running.
func (s *CombatService) loadActiveEncounter(ctx context.Context, encounterID string) (*combat.Encounter, error) {
	enc, err := s.encounterRepo.FindByID(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, ErrEncounterNotFound
	}
	switch enc.Status {
	case combat.EncounterActive:
		return enc, nil
	case combat.EncounterCompleted:
		return nil, ErrCombatEnded
	default:
		return nil, fmt.Errorf("%w: combat has not started", combat.ErrInvalidState)
	}
}

// currentActor resolves a combatant id that must be in the roster and
// must hold the current turn.
func currentActor(enc *combat.Encounter, combatantID string) (*combat.Combatant, error) {
	actor := enc.CombatantByID(combatantID)
	if actor == nil {
		return nil, ErrCombatantNotFound
	}
	if cur := enc.CurrentCombatant(); cur == nil || cur.ID != actor.ID {
		return nil, ErrNotYourTurn
	}
	return actor, nil
}

// performAttack rolls the attack and applies weapon damage on a hit.
func (s *CombatService) performAttack(attacker, target *combat.Combatant) (*model.AttackView, error) {
	attack, err := combat.ResolveAttack(s.dice, attacker, target, attacker.AttackModifier)
	if err != nil {
		return nil, err
	}
	view := &model.AttackView{
		AttackerID:     attacker.ID,
		TargetID:       target.ID,
		D20Roll:        attack.D20Roll,
		AttackModifier: attack.AttackModifier,
		Total:          attack.Total,
		Hit:            attack.Hit,
		Critical:       attack.Critical,
		CriticalMiss:   attack.CriticalMiss,
	}
	if attack.Hit {
		damage, err := combat.RollDamage(s.dice, attacker.Weapon, attacker.DamageModifier, attack.Critical, target.Resistance)
		if err != nil {
			return nil, err
		}
		target.ApplyDamage(damage.Damage)
		view.DamageExpression = damage.Expression
		view.Damage = damage.Damage
	}
	view.TargetHealth = target.CurrentHealth
	view.TargetStatus = string(target.Status)
	return view, nil
}

// finishTurn runs the shared end-of-turn sequence: end detection, turn
// advancement, persistence, cache refresh and event fanout.
func (s *CombatService) finishTurn(ctx context.Context, enc *combat.Encounter, actorID string, action combat.ActionType, attack *model.AttackView) (*model.TurnResult, error) {
	round := enc.CurrentRound

	winner := enc.CheckCombatEnd()
	ended := winner != ""
	if ended {
		if err := enc.EndCombat(winner); err != nil {
			return nil, err
		}
	} else if err := enc.AdvanceToNextTurn(); err != nil {
		return nil, err
	}

	if err := s.encounterRepo.Update(ctx, enc, enc.Version); err != nil {
		return nil, err
	}

	view := model.NewEncounterView(enc)
	result := &model.TurnResult{
		EncounterID: enc.ID,
		Round:       round,
		ActorID:     actorID,
		Action:      string(action),
		Attack:      attack,
		CombatEnded: ended,
		Winner:      string(enc.Winner),
		Encounter:   view,
	}
	if next := enc.CurrentCombatant(); !ended && next != nil {
		result.NextCombatantID = next.ID
	}

	if ended {
		s.persistCharacterHealth(ctx, enc)
		if err := s.cache.DeleteSnapshot(ctx, enc.ID); err != nil {
			log.Warn().Err(err).Str("encounterId", enc.ID).Msg("failed to drop combat snapshot")
		}
		s.broadcaster.BroadcastAdventureEvent(enc.AdventureID, "combat_ended", result)
		log.Info().
			Str("encounterId", enc.ID).
			Str("winner", string(enc.Winner)).
			Int("rounds", enc.CurrentRound).
			Msg("combat ended")
	} else {
		s.cacheSnapshot(ctx, enc.ID, view)
		s.broadcaster.BroadcastAdventureEvent(enc.AdventureID, eventForAction(action), result)
	}

	return result, nil
}

func eventForAction(action combat.ActionType) string {
	switch action {
	case combat.ActionFlee:
		return "combatant_fled"
	case combat.ActionDefend:
		return "combatant_defended"
	default:
		return "turn_resolved"
	}
}

// cacheSnapshot refreshes the Redis snapshot. Failures are logged only;
// Postgres remains the source of truth.
func (s *CombatService) cacheSnapshot(ctx context.Context, encounterID string, view model.EncounterView) {
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := s.cache.SetSnapshot(ctx, encounterID, raw); err != nil {
		log.Warn().Err(err).Str("encounterId", encounterID).Msg("failed to cache combat snapshot")
	}
}

// persistCharacterHealth writes combat health back to the character
// sheets once the encounter is over.
func (s *CombatService) persistCharacterHealth(ctx context.Context, enc *combat.Encounter) {
	for _, c := range enc.Combatants {
		if c.Type != combat.TypeCharacter {
			continue
		}
		if err := s.characterRepo.UpdateHealth(ctx, c.CharacterID, c.CurrentHealth); err != nil {
			log.Error().Err(err).Str("characterId", c.CharacterID).Msg("failed to persist character health")
		}
	}
}
