package memoryrepository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"wealthdesk/internal/models"
	"wealthdesk/internal/repository"
)

// Store is a mutex-guarded map implementation of repository.Repository.
// It backs tests and the "memory" storage mode; records are copied on
// the way in and out so callers cannot mutate shared state.
type Store struct {
	mu sync.RWMutex

	plans     map[string]models.Plan
	logs      []models.ExecutionLog
	nextLogID uint64

	schemes  map[string]models.Scheme
	clients  map[string]models.Client
	profiles []models.RiskProfile
}

func New() *Store {
	return &Store{
		plans:     map[string]models.Plan{},
		nextLogID: 1,
		schemes:   map[string]models.Scheme{},
		clients:   map[string]models.Client{},
	}
}

// --- Plans ------------------------------------------------------------------

func (s *Store) InsertPlan(ctx context.Context, item *models.Plan) error {
	if s == nil || item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = item.CreatedAt
	s.plans[item.ID] = *item
	return nil
}

func (s *Store) GetPlanByID(ctx context.Context, id string) (*models.Plan, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.plans[strings.TrimSpace(id)]
	if !ok {
		return nil, nil
	}
	out := item
	return &out, nil
}

func (s *Store) ListPlans(ctx context.Context, params repository.ListPlansParams) ([]models.Plan, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	items := make([]models.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		if params.Status != nil && *params.Status != "" && p.Status != *params.Status {
			continue
		}
		if params.ClientID != nil && *params.ClientID != "" && p.ClientID != *params.ClientID {
			continue
		}
		if params.PlanType != nil && *params.PlanType != "" && p.PlanType != *params.PlanType {
			continue
		}
		items = append(items, p)
	}
	s.mu.RUnlock()

	asc := params.Asc != nil && *params.Asc
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			if asc {
				return items[i].ID < items[j].ID
			}
			return items[i].ID > items[j].ID
		}
		if asc {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return paginate(items, params.Limit, params.Offset), nil
}

func (s *Store) CountPlans(ctx context.Context, params repository.ListPlansParams) (int64, error) {
	items, err := s.ListPlans(ctx, repository.ListPlansParams{
		Status:   params.Status,
		ClientID: params.ClientID,
		PlanType: params.PlanType,
		Limit:    -1,
	})
	if err != nil {
		return 0, err
	}
	return int64(len(items)), nil
}

func (s *Store) ListPlansDueOn(ctx context.Context, date time.Time) ([]models.Plan, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	var items []models.Plan
	for _, p := range s.plans {
		if p.Status != models.PlanStatusActive || p.NextExecutionDate == nil {
			continue
		}
		if sameDate(*p.NextExecutionDate, date) {
			items = append(items, p)
		}
	}
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) UpdatePlan(ctx context.Context, item *models.Plan) error {
	if s == nil || item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[item.ID]; !ok {
		return nil
	}
	item.UpdatedAt = time.Now().UTC()
	s.plans[item.ID] = *item
	return nil
}

// --- Execution logs ---------------------------------------------------------

func (s *Store) InsertExecutionLog(ctx context.Context, item *models.ExecutionLog) error {
	if s == nil || item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.nextLogID
	s.nextLogID++
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.logs = append(s.logs, *item)
	return nil
}

func (s *Store) ListExecutionLogs(ctx context.Context, params repository.ListExecutionLogsParams) ([]models.ExecutionLog, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	items := make([]models.ExecutionLog, 0, len(s.logs))
	for _, l := range s.logs {
		if params.PlanID != nil && *params.PlanID != "" && l.PlanID != *params.PlanID {
			continue
		}
		if params.Status != nil && *params.Status != "" && l.Status != *params.Status {
			continue
		}
		if params.ExecutionDate != nil && !sameDate(l.ExecutionDate, *params.ExecutionDate) {
			continue
		}
		if params.Since != nil && l.AttemptedAt.Before(*params.Since) {
			continue
		}
		items = append(items, l)
	}
	s.mu.RUnlock()

	asc := params.Asc != nil && *params.Asc
	sort.Slice(items, func(i, j int) bool {
		if asc {
			return items[i].ID < items[j].ID
		}
		return items[i].ID > items[j].ID
	})
	return paginate(items, params.Limit, params.Offset), nil
}

func (s *Store) CountExecutionLogs(ctx context.Context, params repository.ListExecutionLogsParams) (int64, error) {
	items, err := s.ListExecutionLogs(ctx, repository.ListExecutionLogsParams{
		PlanID:        params.PlanID,
		Status:        params.Status,
		ExecutionDate: params.ExecutionDate,
		Since:         params.Since,
		Limit:         -1,
	})
	if err != nil {
		return 0, err
	}
	return int64(len(items)), nil
}

// --- Scheme catalog ---------------------------------------------------------

func (s *Store) UpsertScheme(ctx context.Context, item *models.Scheme) error {
	if s == nil || item == nil || strings.TrimSpace(item.ID) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.schemes[item.ID]; ok {
		item.CreatedAt = prev.CreatedAt
	} else if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = time.Now().UTC()
	s.schemes[item.ID] = *item
	return nil
}

func (s *Store) GetSchemeByID(ctx context.Context, id string) (*models.Scheme, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.schemes[strings.TrimSpace(id)]
	if !ok {
		return nil, nil
	}
	out := item
	return &out, nil
}

func (s *Store) ListSchemes(ctx context.Context, params repository.ListSchemesParams) ([]models.Scheme, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	items := make([]models.Scheme, 0, len(s.schemes))
	for _, sc := range s.schemes {
		if params.Category != nil && *params.Category != "" && sc.Category != *params.Category {
			continue
		}
		if params.Active != nil && sc.Active != *params.Active {
			continue
		}
		items = append(items, sc)
	}
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return paginate(items, params.Limit, params.Offset), nil
}

func (s *Store) CountSchemes(ctx context.Context, params repository.ListSchemesParams) (int64, error) {
	items, err := s.ListSchemes(ctx, repository.ListSchemesParams{
		Category: params.Category,
		Active:   params.Active,
		Limit:    -1,
	})
	if err != nil {
		return 0, err
	}
	return int64(len(items)), nil
}

// --- Clients ----------------------------------------------------------------

func (s *Store) InsertClient(ctx context.Context, item *models.Client) error {
	if s == nil || item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = item.CreatedAt
	s.clients[item.ID] = *item
	return nil
}

func (s *Store) GetClientByID(ctx context.Context, id string) (*models.Client, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.clients[strings.TrimSpace(id)]
	if !ok {
		return nil, nil
	}
	out := item
	return &out, nil
}

func (s *Store) UpdateClient(ctx context.Context, item *models.Client) error {
	if s == nil || item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[item.ID]; !ok {
		return nil
	}
	item.UpdatedAt = time.Now().UTC()
	s.clients[item.ID] = *item
	return nil
}

func (s *Store) ListClients(ctx context.Context, params repository.ListClientsParams) ([]models.Client, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	items := make([]models.Client, 0, len(s.clients))
	for _, cl := range s.clients {
		if params.Manager != nil && *params.Manager != "" && cl.RelationshipManager != *params.Manager {
			continue
		}
		items = append(items, cl)
	}
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return paginate(items, params.Limit, params.Offset), nil
}

func (s *Store) CountClients(ctx context.Context, params repository.ListClientsParams) (int64, error) {
	items, err := s.ListClients(ctx, repository.ListClientsParams{
		Manager: params.Manager,
		Limit:   -1,
	})
	if err != nil {
		return 0, err
	}
	return int64(len(items)), nil
}

// --- Risk profiles ----------------------------------------------------------

func (s *Store) InsertRiskProfile(ctx context.Context, item *models.RiskProfile) error {
	if s == nil || item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = uint64(len(s.profiles) + 1)
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.profiles = append(s.profiles, *item)
	return nil
}

func (s *Store) GetLatestRiskProfile(ctx context.Context, clientID, kind string) (*models.RiskProfile, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.RiskProfile
	for i := range s.profiles {
		p := s.profiles[i]
		if p.ClientID != strings.TrimSpace(clientID) {
			continue
		}
		if kind != "" && p.Kind != kind {
			continue
		}
		if latest == nil || p.AssessedAt.After(latest.AssessedAt) {
			out := p
			latest = &out
		}
	}
	return latest, nil
}

func (s *Store) ListRiskProfilesByClient(ctx context.Context, clientID string) ([]models.RiskProfile, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	var items []models.RiskProfile
	for _, p := range s.profiles {
		if p.ClientID == strings.TrimSpace(clientID) {
			items = append(items, p)
		}
	}
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].AssessedAt.After(items[j].AssessedAt) })
	return items, nil
}

// --- helpers ----------------------------------------------------------------

// paginate applies limit/offset; limit < 0 means unbounded (internal use).
func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit < 0 {
		return items
	}
	if limit == 0 {
		limit = 200
	}
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
