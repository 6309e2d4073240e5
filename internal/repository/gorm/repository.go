package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wealthdesk/internal/models"
	"wealthdesk/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Plans ------------------------------------------------------------------

func (s *Store) InsertPlan(ctx context.Context, item *models.Plan) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetPlanByID(ctx context.Context, id string) (*models.Plan, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var item models.Plan
	err := s.db.WithContext(ctx).Model(&models.Plan{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPlans(ctx context.Context, params repository.ListPlansParams) ([]models.Plan, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyPlanFilters(s.db.WithContext(ctx).Model(&models.Plan{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Plan
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPlans(ctx context.Context, params repository.ListPlansParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := applyPlanFilters(s.db.WithContext(ctx).Model(&models.Plan{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListPlansDueOn(ctx context.Context, date time.Time) ([]models.Plan, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Plan
	if err := s.db.WithContext(ctx).
		Model(&models.Plan{}).
		Where("status = ?", models.PlanStatusActive).
		Where("next_execution_date = ?", date).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdatePlan(ctx context.Context, item *models.Plan) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.ID) == "" {
		return nil
	}
	// Save writes every column so cleared fields (next_execution_date,
	// failure_reason) are persisted as NULL.
	return s.db.WithContext(ctx).Save(item).Error
}

func applyPlanFilters(query *gorm.DB, params repository.ListPlansParams) *gorm.DB {
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.ClientID != nil && strings.TrimSpace(*params.ClientID) != "" {
		query = query.Where("client_id = ?", strings.TrimSpace(*params.ClientID))
	}
	if params.PlanType != nil && strings.TrimSpace(*params.PlanType) != "" {
		query = query.Where("plan_type = ?", strings.TrimSpace(*params.PlanType))
	}
	return query
}

// --- Execution logs ---------------------------------------------------------

func (s *Store) InsertExecutionLog(ctx context.Context, item *models.ExecutionLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListExecutionLogs(ctx context.Context, params repository.ListExecutionLogsParams) ([]models.ExecutionLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyExecutionLogFilters(s.db.WithContext(ctx).Model(&models.ExecutionLog{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "attempted_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.ExecutionLog
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountExecutionLogs(ctx context.Context, params repository.ListExecutionLogsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := applyExecutionLogFilters(s.db.WithContext(ctx).Model(&models.ExecutionLog{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyExecutionLogFilters(query *gorm.DB, params repository.ListExecutionLogsParams) *gorm.DB {
	if params.PlanID != nil && strings.TrimSpace(*params.PlanID) != "" {
		query = query.Where("plan_id = ?", strings.TrimSpace(*params.PlanID))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.ExecutionDate != nil && !params.ExecutionDate.IsZero() {
		query = query.Where("execution_date = ?", *params.ExecutionDate)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("attempted_at >= ?", *params.Since)
	}
	return query
}

// --- Scheme catalog ---------------------------------------------------------

func (s *Store) UpsertScheme(ctx context.Context, item *models.Scheme) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.ID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"category",
			"nav",
			"risk_grade",
			"active",
			"metadata",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSchemeByID(ctx context.Context, id string) (*models.Scheme, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var item models.Scheme
	err := s.db.WithContext(ctx).Model(&models.Scheme{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSchemes(ctx context.Context, params repository.ListSchemesParams) ([]models.Scheme, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applySchemeFilters(s.db.WithContext(ctx).Model(&models.Scheme{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "name")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Scheme
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSchemes(ctx context.Context, params repository.ListSchemesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := applySchemeFilters(s.db.WithContext(ctx).Model(&models.Scheme{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applySchemeFilters(query *gorm.DB, params repository.ListSchemesParams) *gorm.DB {
	if params.Category != nil && strings.TrimSpace(*params.Category) != "" {
		query = query.Where("category = ?", strings.TrimSpace(*params.Category))
	}
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}
	return query
}

// --- Clients ----------------------------------------------------------------

func (s *Store) InsertClient(ctx context.Context, item *models.Client) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetClientByID(ctx context.Context, id string) (*models.Client, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var item models.Client
	err := s.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateClient(ctx context.Context, item *models.Client) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.ID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) ListClients(ctx context.Context, params repository.ListClientsParams) ([]models.Client, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyClientFilters(s.db.WithContext(ctx).Model(&models.Client{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "name")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Client
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountClients(ctx context.Context, params repository.ListClientsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := applyClientFilters(s.db.WithContext(ctx).Model(&models.Client{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyClientFilters(query *gorm.DB, params repository.ListClientsParams) *gorm.DB {
	if params.Manager != nil && strings.TrimSpace(*params.Manager) != "" {
		query = query.Where("relationship_manager = ?", strings.TrimSpace(*params.Manager))
	}
	return query
}

// --- Risk profiles ----------------------------------------------------------

func (s *Store) InsertRiskProfile(ctx context.Context, item *models.RiskProfile) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetLatestRiskProfile(ctx context.Context, clientID, kind string) (*models.RiskProfile, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.RiskProfile{}).Where("client_id = ?", clientID)
	if kind = strings.TrimSpace(kind); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	var item models.RiskProfile
	err := query.Order("assessed_at desc").First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListRiskProfilesByClient(ctx context.Context, clientID string) ([]models.RiskProfile, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, nil
	}
	var items []models.RiskProfile
	if err := s.db.WithContext(ctx).
		Model(&models.RiskProfile{}).
		Where("client_id = ?", clientID).
		Order("assessed_at desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
