package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/freeeve/natural-twenty/api/internal/auth"
	"github.com/freeeve/natural-twenty/api/internal/model"
	"github.com/freeeve/natural-twenty/api/internal/repository"
	"github.com/freeeve/natural-twenty/api/internal/service"
	"github.com/freeeve/natural-twenty/api/pkg/combat"
	"github.com/freeeve/natural-twenty/api/pkg/dice"
)

// --- Mock Repositories ---

type mockUserRepo struct {
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (m *mockUserRepo) FindByProviderID(_ context.Context, provider, providerID string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Upsert(_ context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			u.DisplayName = displayName
			return u, nil
		}
	}
	m.seq++
	u := &model.User{
		ID:          fmt.Sprintf("user-%d", m.seq),
		Provider:    provider,
		ProviderID:  providerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.DisplayName = displayName
	return nil
}

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

type mockEncounterRepo struct {
	encounters map[string]*combat.Encounter
}

func newMockEncounterRepo() *mockEncounterRepo {
	return &mockEncounterRepo{encounters: make(map[string]*combat.Encounter)}
}

func (m *mockEncounterRepo) Create(_ context.Context, e *combat.Encounter) error {
	m.encounters[e.ID] = e
	return nil
}

func (m *mockEncounterRepo) FindByID(_ context.Context, id string) (*combat.Encounter, error) {
	e, ok := m.encounters[id]
	if !ok {
		return nil, nil
	}
	return e, nil
}

func (m *mockEncounterRepo) FindActiveByAdventure(_ context.Context, adventureID string) (*combat.Encounter, error) {
	for _, e := range m.encounters {
		if e.AdventureID == adventureID && e.Status == combat.EncounterActive {
			return e, nil
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
	m.encounters[e.ID] = e
	return nil
}

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

// scriptSource feeds the dice roller a fixed face sequence.
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

// --- Helpers ---

func reqWithUserID(method, path string, body string, userID string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	ctx := auth.ContextWithUserID(req.Context(), userID)
	return req.WithContext(ctx)
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var e errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	return e
}

// combatScene wires a combat handler against in-memory repos with one
// adventure, one character and one enemy pre-seeded.
type combatScene struct {
	handler   *CombatHandler
	adventure *model.Adventure
	character *model.Character
	enemy     *model.Enemy
}

// newCombatScene scripts the dice so the character always wins initiative:
// character rolls 20 (tiebreak 500), enemy rolls 3 (tiebreak 400). Extra
// faces feed whatever the test does next.
func newCombatScene(t *testing.T, extraFaces ...int) *combatScene {
	t.Helper()

	adventureRepo := newMockAdventureRepo()
	characterRepo := newMockCharacterRepo()
	enemyRepo := newMockEnemyRepo()

	adventure, _ := adventureRepo.Create(context.Background(), "user-1", "The Sunless Citadel", "")
	character, _ := characterRepo.Create(context.Background(), &model.Character{
		AdventureID:   adventure.ID,
		Name:          "Bruenor",
		Class:         "fighter",
		Level:         3,
		MaxHealth:     30,
		CurrentHealth: 30,
		ArmorClass:    16,
		Strength:      16,
		Dexterity:     12,
		Weapon:        "Longsword|1d6",
	})
	enemy, _ := enemyRepo.Create(context.Background(), &model.Enemy{
		Name:       "Goblin",
		MaxHealth:  20,
		ArmorClass: 10,
		Strength:   8,
		Dexterity:  14,
		Weapon:     "Scimitar|1d6",
	})

	faces := append([]int{20, 500, 3, 400}, extraFaces...)
	engine := dice.NewServiceWithSource(&scriptSource{faces: faces})
	combatSvc := service.NewCombatService(newMockEncounterRepo(), adventureRepo, characterRepo, enemyRepo, newMockCombatCache(), engine, nil)

	return &combatScene{
		handler:   NewCombatHandler(combatSvc),
		adventure: adventure,
		character: character,
		enemy:     enemy,
	}
}

// initiate runs InitiateCombat and returns the created encounter view.
func (s *combatScene) initiate(t *testing.T) model.EncounterView {
	t.Helper()
	body := fmt.Sprintf(`{"character_ids":["%s"],"enemy_ids":["%s"]}`, s.character.ID, s.enemy.ID)
	req := reqWithUserID(http.MethodPost, "/adventures/"+s.adventure.ID+"/combat", body, "user-1")
	req.SetPathValue("id", s.adventure.ID)
	rec := httptest.NewRecorder()
	s.handler.InitiateCombat(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var view model.EncounterView
	json.Unmarshal(rec.Body.Bytes(), &view)
	return view
}

// --- User Handler Tests ---

func TestGetMe(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &model.User{
		ID:          "user-1",
		DisplayName: "Alice",
		Provider:    "google",
	}
	h := NewUserHandler(repo)

	req := reqWithUserID(http.MethodGet, "/users/me", "", "user-1")
	rec := httptest.NewRecorder()
	h.GetMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var user model.User
	json.Unmarshal(rec.Body.Bytes(), &user)
	if user.DisplayName != "Alice" {
		t.Errorf("expected Alice, got %s", user.DisplayName)
	}
}

func TestGetMeNotFound(t *testing.T) {
	repo := newMockUserRepo()
	h := NewUserHandler(repo)

	req := reqWithUserID(http.MethodGet, "/users/me", "", "nonexistent")
	rec := httptest.NewRecorder()
	h.GetMe(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateMe(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &model.User{
		ID:          "user-1",
		DisplayName: "Alice",
	}
	h := NewUserHandler(repo)

	req := reqWithUserID(http.MethodPatch, "/users/me", `{"display_name":"Bob"}`, "user-1")
	rec := httptest.NewRecorder()
	h.UpdateMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var user model.User
	json.Unmarshal(rec.Body.Bytes(), &user)
	if user.DisplayName != "Bob" {
		t.Errorf("expected Bob, got %s", user.DisplayName)
	}
}

func TestUpdateMeEmptyName(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &model.User{ID: "user-1"}
	h := NewUserHandler(repo)

	req := reqWithUserID(http.MethodPatch, "/users/me", `{"display_name":""}`, "user-1")
	rec := httptest.NewRecorder()
	h.UpdateMe(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateMeInvalidJSON(t *testing.T) {
	repo := newMockUserRepo()
	h := NewUserHandler(repo)

	req := reqWithUserID(http.MethodPatch, "/users/me", "not json", "user-1")
	rec := httptest.NewRecorder()
	h.UpdateMe(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateMeTrimsName(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &model.User{ID: "user-1", DisplayName: "Alice"}
	h := NewUserHandler(repo)

	req := reqWithUserID(http.MethodPatch, "/users/me", `{"display_name":"  Bob  "}`, "user-1")
	rec := httptest.NewRecorder()
	h.UpdateMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.users["user-1"].DisplayName != "Bob" {
		t.Errorf("stored name = %q, want trimmed %q", repo.users["user-1"].DisplayName, "Bob")
	}
}

func TestUpdateMeNameTooLong(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &model.User{ID: "user-1"}
	h := NewUserHandler(repo)

	long := strings.Repeat("x", maxDisplayNameLen+1)
	req := reqWithUserID(http.MethodPatch, "/users/me", `{"display_name":"`+long+`"}`, "user-1")
	rec := httptest.NewRecorder()
	h.UpdateMe(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if got := decodeErrorBody(t, rec); got.Code != CodeValidation {
		t.Errorf("error code = %s, want %s", got.Code, CodeValidation)
	}
}

func TestGetUserHidesProviderIdentity(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-2"] = &model.User{
		ID:          "user-2",
		Provider:    "google",
		ProviderID:  "secret-google-id",
		DisplayName: "Carol",
	}
	h := NewUserHandler(repo)

	req := reqWithUserID(http.MethodGet, "/users/user-2", "", "user-1")
	req.SetPathValue("id", "user-2")
	rec := httptest.NewRecorder()
	h.GetUser(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["display_name"] != "Carol" {
		t.Errorf("display_name = %v", body["display_name"])
	}
	if _, leaked := body["provider_id"]; leaked {
		t.Error("provider_id leaked in public profile")
	}
}

// --- Adventure Handler Tests ---

func TestCreateAdventure(t *testing.T) {
	h := NewAdventureHandler(newMockAdventureRepo())

	req := reqWithUserID(http.MethodPost, "/adventures", `{"name":"Lost Mine"}`, "user-1")
	rec := httptest.NewRecorder()
	h.CreateAdventure(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var adventure model.Adventure
	json.Unmarshal(rec.Body.Bytes(), &adventure)
	if adventure.Name != "Lost Mine" {
		t.Errorf("expected 'Lost Mine', got %s", adventure.Name)
	}
	if adventure.Status != "active" {
		t.Errorf("expected active, got %s", adventure.Status)
	}
}

func TestCreateAdventureMissingName(t *testing.T) {
	h := NewAdventureHandler(newMockAdventureRepo())

	req := reqWithUserID(http.MethodPost, "/adventures", `{"name":""}`, "user-1")
	rec := httptest.NewRecorder()
	h.CreateAdventure(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListAdventuresEmpty(t *testing.T) {
	h := NewAdventureHandler(newMockAdventureRepo())

	req := reqWithUserID(http.MethodGet, "/adventures", "", "user-1")
	rec := httptest.NewRecorder()
	h.ListAdventures(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := strings.TrimSpace(rec.Body.String())
	if body != "[]" {
		t.Errorf("expected [], got %s", body)
	}
}

func TestGetAdventureNotFound(t *testing.T) {
	h := NewAdventureHandler(newMockAdventureRepo())

	req := reqWithUserID(http.MethodGet, "/adventures/nonexistent", "", "user-1")
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()
	h.GetAdventure(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetAdventureWrongUser(t *testing.T) {
	repo := newMockAdventureRepo()
	adventure, _ := repo.Create(context.Background(), "user-1", "Lost Mine", "")
	h := NewAdventureHandler(repo)

	req := reqWithUserID(http.MethodGet, "/adventures/"+adventure.ID, "", "user-2")
	req.SetPathValue("id", adventure.ID)
	rec := httptest.NewRecorder()
	h.GetAdventure(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestUpdateAdventureStatus(t *testing.T) {
	repo := newMockAdventureRepo()
	adventure, _ := repo.Create(context.Background(), "user-1", "Lost Mine", "")
	h := NewAdventureHandler(repo)

	req := reqWithUserID(http.MethodPatch, "/adventures/"+adventure.ID, `{"status":"completed"}`, "user-1")
	req.SetPathValue("id", adventure.ID)
	rec := httptest.NewRecorder()
	h.UpdateAdventure(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated model.Adventure
	json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Status != "completed" {
		t.Errorf("expected completed, got %s", updated.Status)
	}
}

func TestUpdateAdventureBadStatus(t *testing.T) {
	repo := newMockAdventureRepo()
	adventure, _ := repo.Create(context.Background(), "user-1", "Lost Mine", "")
	h := NewAdventureHandler(repo)

	req := reqWithUserID(http.MethodPatch, "/adventures/"+adventure.ID, `{"status":"paused"}`, "user-1")
	req.SetPathValue("id", adventure.ID)
	rec := httptest.NewRecorder()
	h.UpdateAdventure(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteAdventure(t *testing.T) {
	repo := newMockAdventureRepo()
	adventure, _ := repo.Create(context.Background(), "user-1", "Lost Mine", "")
	h := NewAdventureHandler(repo)

	req := reqWithUserID(http.MethodDelete, "/adventures/"+adventure.ID, "", "user-1")
	req.SetPathValue("id", adventure.ID)
	rec := httptest.NewRecorder()
	h.DeleteAdventure(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got, _ := repo.FindByID(context.Background(), adventure.ID); got != nil {
		t.Error("expected adventure to be deleted")
	}
}

// --- Character Handler Tests ---

func TestCreateCharacter(t *testing.T) {
	adventureRepo := newMockAdventureRepo()
	adventure, _ := adventureRepo.Create(context.Background(), "user-1", "Lost Mine", "")
	h := NewCharacterHandler(newMockCharacterRepo(), adventureRepo)

	body := `{"name":"Bruenor","class":"fighter","level":3,"max_health":30,"armor_class":16,"strength":16,"dexterity":12,"weapon":"Longsword|1d8+3"}`
	req := reqWithUserID(http.MethodPost, "/adventures/"+adventure.ID+"/characters", body, "user-1")
	req.SetPathValue("id", adventure.ID)
	rec := httptest.NewRecorder()
	h.CreateCharacter(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var character model.Character
	json.Unmarshal(rec.Body.Bytes(), &character)
	if character.Name != "Bruenor" {
		t.Errorf("expected Bruenor, got %s", character.Name)
	}
	if character.CurrentHealth != 30 {
		t.Errorf("expected current health 30, got %d", character.CurrentHealth)
	}
}

func TestCreateCharacterBadWeapon(t *testing.T) {
	adventureRepo := newMockAdventureRepo()
	adventure, _ := adventureRepo.Create(context.Background(), "user-1", "Lost Mine", "")
	h := NewCharacterHandler(newMockCharacterRepo(), adventureRepo)

	body := `{"name":"Bruenor","max_health":30,"armor_class":16,"weapon":"Longsword|d8"}`
	req := reqWithUserID(http.MethodPost, "/adventures/"+adventure.ID+"/characters", body, "user-1")
	req.SetPathValue("id", adventure.ID)
	rec := httptest.NewRecorder()
	h.CreateCharacter(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateCharacterAdventureNotFound(t *testing.T) {
	h := NewCharacterHandler(newMockCharacterRepo(), newMockAdventureRepo())

	body := `{"name":"Bruenor","max_health":30,"armor_class":16,"weapon":"Longsword|1d8"}`
	req := reqWithUserID(http.MethodPost, "/adventures/nonexistent/characters", body, "user-1")
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()
	h.CreateCharacter(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListCharactersEmpty(t *testing.T) {
	adventureRepo := newMockAdventureRepo()
	adventure, _ := adventureRepo.Create(context.Background(), "user-1", "Lost Mine", "")
	h := NewCharacterHandler(newMockCharacterRepo(), adventureRepo)

	req := reqWithUserID(http.MethodGet, "/adventures/"+adventure.ID+"/characters", "", "user-1")
	req.SetPathValue("id", adventure.ID)
	rec := httptest.NewRecorder()
	h.ListCharacters(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := strings.TrimSpace(rec.Body.String())
	if body != "[]" {
		t.Errorf("expected [], got %s", body)
	}
}

func TestGetCharacterNotFound(t *testing.T) {
	h := NewCharacterHandler(newMockCharacterRepo(), newMockAdventureRepo())

	req := reqWithUserID(http.MethodGet, "/characters/nonexistent", "", "user-1")
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()
	h.GetCharacter(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteCharacter(t *testing.T) {
	adventureRepo := newMockAdventureRepo()
	adventure, _ := adventureRepo.Create(context.Background(), "user-1", "Lost Mine", "")
	characterRepo := newMockCharacterRepo()
	character, _ := characterRepo.Create(context.Background(), &model.Character{
		AdventureID: adventure.ID,
		Name:        "Bruenor",
		MaxHealth:   30,
		Weapon:      "Longsword|1d8",
	})
	h := NewCharacterHandler(characterRepo, adventureRepo)

	req := reqWithUserID(http.MethodDelete, "/characters/"+character.ID, "", "user-1")
	req.SetPathValue("id", character.ID)
	rec := httptest.NewRecorder()
	h.DeleteCharacter(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got, _ := characterRepo.FindByID(context.Background(), character.ID); got != nil {
		t.Error("expected character to be deleted")
	}
}

// --- Enemy Handler Tests ---

func TestCreateEnemy(t *testing.T) {
	h := NewEnemyHandler(newMockEnemyRepo())

	body := `{"name":"Goblin","max_health":7,"armor_class":15,"strength":8,"dexterity":14,"weapon":"Scimitar|1d6+2","flee_threshold":0.3,"challenge_rating":0.25}`
	req := reqWithUserID(http.MethodPost, "/enemies", body, "user-1")
	rec := httptest.NewRecorder()
	h.CreateEnemy(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var enemy model.Enemy
	json.Unmarshal(rec.Body.Bytes(), &enemy)
	if enemy.Name != "Goblin" {
		t.Errorf("expected Goblin, got %s", enemy.Name)
	}
	if enemy.FleeThreshold == nil || *enemy.FleeThreshold != 0.3 {
		t.Errorf("expected flee threshold 0.3, got %v", enemy.FleeThreshold)
	}
}

func TestCreateEnemyBadResistance(t *testing.T) {
	h := NewEnemyHandler(newMockEnemyRepo())

	body := `{"name":"Goblin","max_health":7,"armor_class":15,"weapon":"Scimitar|1d6","resistance":"immune"}`
	req := reqWithUserID(http.MethodPost, "/enemies", body, "user-1")
	rec := httptest.NewRecorder()
	h.CreateEnemy(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCreateEnemyBadFleeThreshold(t *testing.T) {
	h := NewEnemyHandler(newMockEnemyRepo())

	body := `{"name":"Goblin","max_health":7,"armor_class":15,"weapon":"Scimitar|1d6","flee_threshold":1.5}`
	req := reqWithUserID(http.MethodPost, "/enemies", body, "user-1")
	rec := httptest.NewRecorder()
	h.CreateEnemy(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListEnemiesEmpty(t *testing.T) {
	h := NewEnemyHandler(newMockEnemyRepo())

	req := reqWithUserID(http.MethodGet, "/enemies", "", "user-1")
	rec := httptest.NewRecorder()
	h.ListEnemies(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := strings.TrimSpace(rec.Body.String())
	if body != "[]" {
		t.Errorf("expected [], got %s", body)
	}
}

// --- Dice Handler Tests ---

func newDiceHandler(faces ...int) *DiceHandler {
	engine := dice.NewServiceWithSource(&scriptSource{faces: faces})
	diceSvc := service.NewDiceService(engine, newMockAdventureRepo(), newMockCombatCache(), nil)
	return NewDiceHandler(diceSvc)
}

func TestRollDice(t *testing.T) {
	h := newDiceHandler(4, 5)

	req := reqWithUserID(http.MethodPost, "/dice/roll", `{"expression":"2d6+3"}`, "user-1")
	rec := httptest.NewRecorder()
	h.Roll(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var roll model.RollView
	json.Unmarshal(rec.Body.Bytes(), &roll)
	if roll.FinalTotal != 12 {
		t.Errorf("expected total 12, got %d", roll.FinalTotal)
	}
}

func TestRollDiceInvalidExpression(t *testing.T) {
	h := newDiceHandler()

	req := reqWithUserID(http.MethodPost, "/dice/roll", `{"expression":"d20"}`, "user-1")
	rec := httptest.NewRecorder()
	h.Roll(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if e := decodeErrorBody(t, rec); e.Code != CodeInvalidRequest {
		t.Errorf("expected code %s, got %s", CodeInvalidRequest, e.Code)
	}
}

func TestRollDiceOutOfRange(t *testing.T) {
	h := newDiceHandler()

	req := reqWithUserID(http.MethodPost, "/dice/roll", `{"expression":"1001d6"}`, "user-1")
	rec := httptest.NewRecorder()
	h.Roll(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if e := decodeErrorBody(t, rec); e.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, e.Code)
	}
}

func TestValidateDice(t *testing.T) {
	h := newDiceHandler()

	req := reqWithUserID(http.MethodPost, "/dice/validate", `{"expression":"2d6+1d4-2"}`, "user-1")
	rec := httptest.NewRecorder()
	h.Validate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var parsed model.ExpressionView
	json.Unmarshal(rec.Body.Bytes(), &parsed)
	if len(parsed.Groups) != 2 {
		t.Errorf("expected 2 groups, got %d", len(parsed.Groups))
	}
	if parsed.TotalModifier != -2 {
		t.Errorf("expected total modifier -2, got %d", parsed.TotalModifier)
	}
}

func TestDiceStats(t *testing.T) {
	h := newDiceHandler()

	req := reqWithUserID(http.MethodGet, "/dice/stats?expression=2d6%2B3", "", "user-1")
	rec := httptest.NewRecorder()
	h.Stats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stats model.StatsView
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats.Min != 5 || stats.Max != 15 {
		t.Errorf("expected min 5 max 15, got min %d max %d", stats.Min, stats.Max)
	}
}

func TestDiceStatsMissingExpression(t *testing.T) {
	h := newDiceHandler()

	req := reqWithUserID(http.MethodGet, "/dice/stats", "", "user-1")
	rec := httptest.NewRecorder()
	h.Stats(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestRollForAdventureNotFound(t *testing.T) {
	h := newDiceHandler(4)

	req := reqWithUserID(http.MethodPost, "/adventures/nonexistent/rolls", `{"expression":"1d6"}`, "user-1")
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()
	h.RollForAdventure(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRecentRollsBadLimit(t *testing.T) {
	h := newDiceHandler()

	req := reqWithUserID(http.MethodGet, "/adventures/adventure-1/rolls?limit=zero", "", "user-1")
	req.SetPathValue("id", "adventure-1")
	rec := httptest.NewRecorder()
	h.RecentRolls(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// --- Combat Handler Tests ---

func TestInitiateCombat(t *testing.T) {
	scene := newCombatScene(t)

	view := scene.initiate(t)
	if view.Status != "active" {
		t.Errorf("expected active, got %s", view.Status)
	}
	if len(view.Combatants) != 2 {
		t.Fatalf("expected 2 combatants, got %d", len(view.Combatants))
	}
	if view.Round != 1 {
		t.Errorf("expected round 1, got %d", view.Round)
	}
	if view.CurrentCombatantID == "" {
		t.Error("expected a current combatant")
	}
}

func TestInitiateCombatAdventureNotFound(t *testing.T) {
	scene := newCombatScene(t)

	body := fmt.Sprintf(`{"character_ids":["%s"],"enemy_ids":["%s"]}`, scene.character.ID, scene.enemy.ID)
	req := reqWithUserID(http.MethodPost, "/adventures/nonexistent/combat", body, "user-1")
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()
	scene.handler.InitiateCombat(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestInitiateCombatAlreadyRunning(t *testing.T) {
	scene := newCombatScene(t)
	scene.initiate(t)

	body := fmt.Sprintf(`{"character_ids":["%s"],"enemy_ids":["%s"]}`, scene.character.ID, scene.enemy.ID)
	req := reqWithUserID(http.MethodPost, "/adventures/"+scene.adventure.ID+"/combat", body, "user-1")
	req.SetPathValue("id", scene.adventure.ID)
	rec := httptest.NewRecorder()
	scene.handler.InitiateCombat(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if e := decodeErrorBody(t, rec); e.Code != CodeConflict {
		t.Errorf("expected code %s, got %s", CodeConflict, e.Code)
	}
}

func TestInitiateCombatNoEnemies(t *testing.T) {
	scene := newCombatScene(t)

	body := fmt.Sprintf(`{"character_ids":["%s"],"enemy_ids":[]}`, scene.character.ID)
	req := reqWithUserID(http.MethodPost, "/adventures/"+scene.adventure.ID+"/combat", body, "user-1")
	req.SetPathValue("id", scene.adventure.ID)
	rec := httptest.NewRecorder()
	scene.handler.InitiateCombat(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetCombatStatusNotFound(t *testing.T) {
	scene := newCombatScene(t)

	req := reqWithUserID(http.MethodGet, "/combat/nonexistent", "", "user-1")
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()
	scene.handler.GetCombatStatus(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetCombatStatus(t *testing.T) {
	scene := newCombatScene(t)
	created := scene.initiate(t)

	req := reqWithUserID(http.MethodGet, "/combat/"+created.ID, "", "user-1")
	req.SetPathValue("id", created.ID)
	rec := httptest.NewRecorder()
	scene.handler.GetCombatStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view model.EncounterView
	json.Unmarshal(rec.Body.Bytes(), &view)
	if view.ID != created.ID {
		t.Errorf("expected encounter %s, got %s", created.ID, view.ID)
	}
}

// The scene scripts a natural 20, so the attack crits and rolls the
// longsword's 1d6 twice: 6+6 plus the +3 strength modifier.
func TestAttackCriticalHit(t *testing.T) {
	scene := newCombatScene(t, 20, 6, 6)
	view := scene.initiate(t)

	var attacker, target string
	for _, c := range view.Combatants {
		if c.Type == string(combat.TypeCharacter) {
			attacker = c.ID
		} else {
			target = c.ID
		}
	}

	body := fmt.Sprintf(`{"attacking_combatant_id":"%s","target_combatant_id":"%s"}`, attacker, target)
	req := reqWithUserID(http.MethodPost, "/combat/"+view.ID+"/attack", body, "user-1")
	req.SetPathValue("id", view.ID)
	rec := httptest.NewRecorder()
	scene.handler.Attack(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result model.TurnResult
	json.Unmarshal(rec.Body.Bytes(), &result)
	if result.Attack == nil {
		t.Fatal("expected an attack result")
	}
	if !result.Attack.Hit || !result.Attack.Critical {
		t.Errorf("expected critical hit, got hit=%v critical=%v", result.Attack.Hit, result.Attack.Critical)
	}
	if result.Attack.Damage != 15 {
		t.Errorf("expected 15 damage, got %d", result.Attack.Damage)
	}
	if result.Attack.TargetHealth != 5 {
		t.Errorf("expected target at 5 health, got %d", result.Attack.TargetHealth)
	}
	if result.CombatEnded {
		t.Error("expected combat to continue")
	}
}

func TestAttackOutOfTurn(t *testing.T) {
	scene := newCombatScene(t)
	view := scene.initiate(t)

	var character, enemy string
	for _, c := range view.Combatants {
		if c.Type == string(combat.TypeCharacter) {
			character = c.ID
		} else {
			enemy = c.ID
		}
	}

	// The enemy lost initiative, so attacking now is out of turn.
	body := fmt.Sprintf(`{"attacking_combatant_id":"%s","target_combatant_id":"%s"}`, enemy, character)
	req := reqWithUserID(http.MethodPost, "/combat/"+view.ID+"/attack", body, "user-1")
	req.SetPathValue("id", view.ID)
	rec := httptest.NewRecorder()
	scene.handler.Attack(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if e := decodeErrorBody(t, rec); e.Code != CodeNotYourTurn {
		t.Errorf("expected code %s, got %s", CodeNotYourTurn, e.Code)
	}
}

func TestAttackAllyRejected(t *testing.T) {
	scene := newCombatScene(t)
	view := scene.initiate(t)

	var attacker string
	for _, c := range view.Combatants {
		if c.Type == string(combat.TypeCharacter) {
			attacker = c.ID
		}
	}

	body := fmt.Sprintf(`{"attacking_combatant_id":"%s","target_combatant_id":"%s"}`, attacker, attacker)
	req := reqWithUserID(http.MethodPost, "/combat/"+view.ID+"/attack", body, "user-1")
	req.SetPathValue("id", view.ID)
	rec := httptest.NewRecorder()
	scene.handler.Attack(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if e := decodeErrorBody(t, rec); e.Code != CodeInvalidTarget {
		t.Errorf("expected code %s, got %s", CodeInvalidTarget, e.Code)
	}
}

func TestAttackMissingBody(t *testing.T) {
	scene := newCombatScene(t)
	view := scene.initiate(t)

	req := reqWithUserID(http.MethodPost, "/combat/"+view.ID+"/attack", `{"attacking_combatant_id":""}`, "user-1")
	req.SetPathValue("id", view.ID)
	rec := httptest.NewRecorder()
	scene.handler.Attack(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestFleeEndsCombatForLoneCharacter(t *testing.T) {
	scene := newCombatScene(t)
	view := scene.initiate(t)

	var character string
	for _, c := range view.Combatants {
		if c.Type == string(combat.TypeCharacter) {
			character = c.ID
		}
	}

	body := fmt.Sprintf(`{"combatant_id":"%s"}`, character)
	req := reqWithUserID(http.MethodPost, "/combat/"+view.ID+"/flee", body, "user-1")
	req.SetPathValue("id", view.ID)
	rec := httptest.NewRecorder()
	scene.handler.Flee(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result model.TurnResult
	json.Unmarshal(rec.Body.Bytes(), &result)
	if result.Action != "flee" {
		t.Errorf("expected flee action, got %s", result.Action)
	}
	if !result.CombatEnded {
		t.Error("expected combat to end once the only character fled")
	}
	if result.Winner != string(combat.WinnerEnemy) {
		t.Errorf("expected enemy win, got %q", result.Winner)
	}
}

func TestDefendPassesTurn(t *testing.T) {
	scene := newCombatScene(t)
	view := scene.initiate(t)

	var character, enemy string
	for _, c := range view.Combatants {
		if c.Type == string(combat.TypeCharacter) {
			character = c.ID
		} else {
			enemy = c.ID
		}
	}

	body := fmt.Sprintf(`{"combatant_id":"%s"}`, character)
	req := reqWithUserID(http.MethodPost, "/combat/"+view.ID+"/defend", body, "user-1")
	req.SetPathValue("id", view.ID)
	rec := httptest.NewRecorder()
	scene.handler.Defend(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result model.TurnResult
	json.Unmarshal(rec.Body.Bytes(), &result)
	if result.Action != "defend" {
		t.Errorf("expected defend action, got %s", result.Action)
	}
	if result.NextCombatantID != enemy {
		t.Errorf("expected turn to pass to the enemy, got %s", result.NextCombatantID)
	}
}

// The enemy's turn comes after the character defends. The defender
// imposes disadvantage, so the enemy's d20 rolls twice (10 and 12) and
// keeps 10; with its +1 attack modifier that is 11 against AC 16, a
// miss that needs no damage dice.
func TestAITurnAttacksDefendedCharacter(t *testing.T) {
	scene := newCombatScene(t, 10, 12)
	view := scene.initiate(t)

	var character string
	for _, c := range view.Combatants {
		if c.Type == string(combat.TypeCharacter) {
			character = c.ID
		}
	}

	body := fmt.Sprintf(`{"combatant_id":"%s"}`, character)
	req := reqWithUserID(http.MethodPost, "/combat/"+view.ID+"/defend", body, "user-1")
	req.SetPathValue("id", view.ID)
	rec := httptest.NewRecorder()
	scene.handler.Defend(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("defend: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = reqWithUserID(http.MethodPost, "/combat/"+view.ID+"/ai-turn", "", "user-1")
	req.SetPathValue("id", view.ID)
	rec = httptest.NewRecorder()
	scene.handler.AITurn(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ai-turn: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result model.TurnResult
	json.Unmarshal(rec.Body.Bytes(), &result)
	if result.Action != "attack" {
		t.Fatalf("expected attack action, got %s", result.Action)
	}
	if result.Attack.Hit {
		t.Error("expected the disadvantaged attack to miss")
	}
}

func TestAITurnNotEnemyTurn(t *testing.T) {
	scene := newCombatScene(t)
	view := scene.initiate(t)

	req := reqWithUserID(http.MethodPost, "/combat/"+view.ID+"/ai-turn", "", "user-1")
	req.SetPathValue("id", view.ID)
	rec := httptest.NewRecorder()
	scene.handler.AITurn(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

// --- Auth Handler Tests ---

func TestRefreshTokenValid(t *testing.T) {
	jwtMgr := auth.NewJWTManager("test-secret")
	repo := newMockUserRepo()
	h := NewAuthHandler(nil, jwtMgr, repo)

	refresh, _ := jwtMgr.GenerateRefreshToken("user-1")
	body := fmt.Sprintf(`{"refresh_token":"%s"}`, refresh)
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.RefreshToken(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var tokens auth.TokenPair
	json.Unmarshal(rec.Body.Bytes(), &tokens)
	if tokens.AccessToken == "" {
		t.Error("expected non-empty access token")
	}
}

func TestRefreshTokenInvalid(t *testing.T) {
	jwtMgr := auth.NewJWTManager("test-secret")
	repo := newMockUserRepo()
	h := NewAuthHandler(nil, jwtMgr, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{"refresh_token":"invalid"}`))
	rec := httptest.NewRecorder()
	h.RefreshToken(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRefreshTokenBadBody(t *testing.T) {
	jwtMgr := auth.NewJWTManager("test-secret")
	repo := newMockUserRepo()
	h := NewAuthHandler(nil, jwtMgr, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.RefreshToken(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
