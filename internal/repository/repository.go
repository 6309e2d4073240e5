package repository

import (
	"context"
	"time"

	"wealthdesk/internal/models"
)

// Repository is the single shared store behind the lifecycle manager,
// the scheduler and the portal query surface. Callers are responsible
// for transition legality; the store only persists.
type Repository interface {
	// Plans
	InsertPlan(ctx context.Context, item *models.Plan) error
	GetPlanByID(ctx context.Context, id string) (*models.Plan, error)
	ListPlans(ctx context.Context, params ListPlansParams) ([]models.Plan, error)
	CountPlans(ctx context.Context, params ListPlansParams) (int64, error)
	// ListPlansDueOn returns only active plans whose next execution date
	// equals the given calendar date.
	ListPlansDueOn(ctx context.Context, date time.Time) ([]models.Plan, error)
	UpdatePlan(ctx context.Context, item *models.Plan) error

	// Execution logs (append-only)
	InsertExecutionLog(ctx context.Context, item *models.ExecutionLog) error
	ListExecutionLogs(ctx context.Context, params ListExecutionLogsParams) ([]models.ExecutionLog, error)
	CountExecutionLogs(ctx context.Context, params ListExecutionLogsParams) (int64, error)

	// Scheme catalog
	UpsertScheme(ctx context.Context, item *models.Scheme) error
	GetSchemeByID(ctx context.Context, id string) (*models.Scheme, error)
	ListSchemes(ctx context.Context, params ListSchemesParams) ([]models.Scheme, error)
	CountSchemes(ctx context.Context, params ListSchemesParams) (int64, error)

	// Clients
	InsertClient(ctx context.Context, item *models.Client) error
	GetClientByID(ctx context.Context, id string) (*models.Client, error)
	UpdateClient(ctx context.Context, item *models.Client) error
	ListClients(ctx context.Context, params ListClientsParams) ([]models.Client, error)
	CountClients(ctx context.Context, params ListClientsParams) (int64, error)

	// Risk/knowledge profiles
	InsertRiskProfile(ctx context.Context, item *models.RiskProfile) error
	GetLatestRiskProfile(ctx context.Context, clientID, kind string) (*models.RiskProfile, error)
	ListRiskProfilesByClient(ctx context.Context, clientID string) ([]models.RiskProfile, error)
}

type ListPlansParams struct {
	Limit    int
	Offset   int
	Status   *string
	ClientID *string
	PlanType *string
	OrderBy  string
	Asc      *bool
}

type ListExecutionLogsParams struct {
	Limit         int
	Offset        int
	PlanID        *string
	Status        *string
	ExecutionDate *time.Time
	Since         *time.Time
	OrderBy       string
	Asc           *bool
}

type ListSchemesParams struct {
	Limit    int
	Offset   int
	Category *string
	Active   *bool
	OrderBy  string
	Asc      *bool
}

type ListClientsParams struct {
	Limit   int
	Offset  int
	Manager *string
	OrderBy string
	Asc     *bool
}
