package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/freeeve/natural-twenty/api/internal/model"
	"github.com/freeeve/natural-twenty/api/internal/repository"
	"github.com/freeeve/natural-twenty/api/pkg/combat"
	"github.com/freeeve/natural-twenty/api/pkg/dice"
)

// scriptSource feeds the dice roller a fixed sequence of faces.
type scriptSource struct {
	faces []int
	next  int
}

func (s *scriptSource) Face(sides int) (int, error) {
	if s.next >= len(s.faces) {
		return 0, fmt.Errorf("script exhausted after %d faces", len(s.faces))
	}
	f := s.faces[s.next]
	s.next++
	return f, nil
}

func scriptedDice(faces ...int) *dice.Service {
	return dice.NewServiceWithSource(&scriptSource{faces: faces})
}

// mockAdventureRepo implements repository.AdventureRepository in memory.
type mockAdventureRepo struct {
	adventures map[string]*model.Adventure
	seq        int
}

func newMockAdventureRepo() *mockAdventureRepo {
	return &mockAdventureRepo{adventures: make(map[string]*model.Adventure)}
}

func (m *mockAdventureRepo) Create(_ context.Context, userID, name, description string) (*model.Adventure, error) {
	m.seq++
	a := &model.Adventure{
		ID:          fmt.Sprintf("adventure-%d", m.seq),
		UserID:      userID,
		Name:        name,
		Description: description,
		Status:      "active",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.adventures[a.ID] = a
	return a, nil
}

func (m *mockAdventureRepo) FindByID(_ context.Context, id string) (*model.Adventure, error) {
	a, ok := m.adventures[id]
	if !ok {
		return nil, nil
	}
	return a, nil
}

func (m *mockAdventureRepo) ListByUser(_ context.Context, userID string) ([]model.Adventure, error) {
	var result []model.Adventure
	for _, a := range m.adventures {
		if a.UserID == userID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAdventureRepo) SetStatus(_ context.Context, id, status string) error {
	if a, ok := m.adventures[id]; ok {
		a.Status = status
	}
	return nil
}

func (m *mockAdventureRepo) Delete(_ context.Context, id string) error {
	delete(m.adventures, id)
	return nil
}

// mockCharacterRepo implements repository.CharacterRepository in memory.
type mockCharacterRepo struct {
	characters map[string]*model.Character
	seq        int
}

func newMockCharacterRepo() *mockCharacterRepo {
	return &mockCharacterRepo{characters: make(map[string]*model.Character)}
}

func (m *mockCharacterRepo) Create(_ context.Context, c *model.Character) (*model.Character, error) {
	m.seq++
	cp := *c
	cp.ID = fmt.Sprintf("character-%d", m.seq)
	cp.CurrentHealth = cp.MaxHealth
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = time.Now()
	m.characters[cp.ID] = &cp
	return &cp, nil
}

func (m *mockCharacterRepo) FindByID(_ context.Context, id string) (*model.Character, error) {
	c, ok := m.characters[id]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (m *mockCharacterRepo) FindByIDs(_ context.Context, ids []string) ([]model.Character, error) {
	var result []model.Character
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if c, ok := m.characters[id]; ok {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (m *mockCharacterRepo) ListByAdventure(_ context.Context, adventureID string) ([]model.Character, error) {
	var result []model.Character
	for _, c := range m.characters {
		if c.AdventureID == adventureID {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (m *mockCharacterRepo) UpdateHealth(_ context.Context, id string, currentHealth int) error {
	if c, ok := m.characters[id]; ok {
		c.CurrentHealth = currentHealth
	}
	return nil
}

func (m *mockCharacterRepo) Delete(_ context.Context, id string) error {
	delete(m.characters, id)
	return nil
}

// mockEnemyRepo implements repository.EnemyRepository in memory.
type mockEnemyRepo struct {
	enemies map[string]*model.Enemy
	seq     int
}

func newMockEnemyRepo() *mockEnemyRepo {
	return &mockEnemyRepo{enemies: make(map[string]*model.Enemy)}
}

func (m *mockEnemyRepo) Create(_ context.Context, e *model.Enemy) (*model.Enemy, error) {
	m.seq++
	cp := *e
	cp.ID = fmt.Sprintf("enemy-%d", m.seq)
	if cp.Resistance == "" {
		cp.Resistance = "none"
	}
	m.enemies[cp.ID] = &cp
	return &cp, nil
}

func (m *mockEnemyRepo) FindByID(_ context.Context, id string) (*model.Enemy, error) {
	e, ok := m.enemies[id]
	if !ok {
		return nil, nil
	}
	return e, nil
}

func (m *mockEnemyRepo) FindByIDs(_ context.Context, ids []string) ([]model.Enemy, error) {
	var result []model.Enemy
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if e, ok := m.enemies[id]; ok {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *mockEnemyRepo) List(_ context.Context) ([]model.Enemy, error) {
	var result []model.Enemy
	for _, e := range m.enemies {
		result = append(result, *e)
	}
	return result, nil
}

// mockEncounterRepo implements repository.EncounterRepository with the
// same version-check semantics as the Postgres implementation. Reads
// return copies so nothing touches the store until Update.
type mockEncounterRepo struct {
	encounters map[string]*combat.Encounter
}

func newMockEncounterRepo() *mockEncounterRepo {
	return &mockEncounterRepo{encounters: make(map[string]*combat.Encounter)}
}

func cloneEncounter(e *combat.Encounter) *combat.Encounter {
	cp := *e
	cp.Combatants = make([]*combat.Combatant, len(e.Combatants))
	for i, c := range e.Combatants {
		cc := *c
		cp.Combatants[i] = &cc
	}
	cp.InitiativeOrder = append([]string(nil), e.InitiativeOrder...)
	if e.EndedAt != nil {
		ended := *e.EndedAt
		cp.EndedAt = &ended
	}
	return &cp
}

func (m *mockEncounterRepo) Create(_ context.Context, e *combat.Encounter) error {
	m.encounters[e.ID] = cloneEncounter(e)
	return nil
}

func (m *mockEncounterRepo) FindByID(_ context.Context, id string) (*combat.Encounter, error) {
	e, ok := m.encounters[id]
	if !ok {
		return nil, nil
	}
	return cloneEncounter(e), nil
}

func (m *mockEncounterRepo) FindActiveByAdventure(_ context.Context, adventureID string) (*combat.Encounter, error) {
	for _, e := range m.encounters {
		if e.AdventureID == adventureID && e.Status == combat.EncounterActive {
			return cloneEncounter(e), nil
		}
	}
	return nil, nil
}

func (m *mockEncounterRepo) Update(_ context.Context, e *combat.Encounter, expectedVersion int) error {
	stored, ok := m.encounters[e.ID]
	if !ok || stored.Version != expectedVersion {
		return repository.ErrConflict
	}
	e.Version = expectedVersion + 1
	m.encounters[e.ID] = cloneEncounter(e)
	return nil
}

// mockCombatCache implements repository.CombatCache in memory.
type mockCombatCache struct {
	snapshots map[string]json.RawMessage
	rolls     map[string][]json.RawMessage
}

func newMockCombatCache() *mockCombatCache {
	return &mockCombatCache{
		snapshots: make(map[string]json.RawMessage),
		rolls:     make(map[string][]json.RawMessage),
	}
}

func (c *mockCombatCache) SetSnapshot(_ context.Context, encounterID string, snapshot json.RawMessage) error {
	c.snapshots[encounterID] = snapshot
	return nil
}

func (c *mockCombatCache) GetSnapshot(_ context.Context, encounterID string) (json.RawMessage, error) {
	return c.snapshots[encounterID], nil
}

func (c *mockCombatCache) DeleteSnapshot(_ context.Context, encounterID string) error {
	delete(c.snapshots, encounterID)
	return nil
}

func (c *mockCombatCache) PushRoll(_ context.Context, adventureID string, roll json.RawMessage) error {
	c.rolls[adventureID] = append([]json.RawMessage{roll}, c.rolls[adventureID]...)
	return nil
}

func (c *mockCombatCache) RecentRolls(_ context.Context, adventureID string, limit int64) ([]json.RawMessage, error) {
	rolls := c.rolls[adventureID]
	if limit > 0 && int64(len(rolls)) > limit {
		rolls = rolls[:limit]
	}
	return rolls, nil
}

type broadcastEvent struct {
	AdventureID string
	EventType   string
	Data        any
}

// recordBroadcaster captures broadcast events for assertions.
type recordBroadcaster struct {
	events []broadcastEvent
}

func (b *recordBroadcaster) BroadcastAdventureEvent(adventureID string, eventType string, data any) {
	b.events = append(b.events, broadcastEvent{AdventureID: adventureID, EventType: eventType, Data: data})
}

func (b *recordBroadcaster) eventTypes() []string {
	var types []string
	for _, e := range b.events {
		types = append(types, e.EventType)
	}
	return types
}
