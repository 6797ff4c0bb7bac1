package services

import (
	"log/slog"
	"time"

	"github.com/cfa-prep/study-service/internal/events"
	"github.com/cfa-prep/study-service/internal/repositories"
	"github.com/cfa-prep/study-service/internal/validator"
)

// ServiceManager hands out the services the handlers and scheduler use
type ServiceManager interface {
	Practice() PracticeService
	Dashboard() DashboardService
	Profile() ProfileService
	Content() ContentService
	ImportExport() ImportExportService
	Reconcile() ReconcileService
}

// ManagerOptions carries the settings shared by several services
type ManagerOptions struct {
	StreakWindow   int
	Location       *time.Location
	ReconcileGrace time.Duration
	Now            func() time.Time
}

type serviceManager struct {
	practice     PracticeService
	dashboard    DashboardService
	profile      ProfileService
	content      ContentService
	importExport ImportExportService
	reconcile    ReconcileService
}

func NewServiceManager(
	repo repositories.Repository,
	publisher events.EventPublisher,
	logger *slog.Logger,
	v *validator.Validator,
	opts ManagerOptions,
) ServiceManager {
	dashboard := NewDashboardService(repo, publisher, NewServiceLogger(logger, "dashboard"), DashboardSettings{
		StreakWindow: opts.StreakWindow,
		Location:     opts.Location,
	}, opts.Now)

	return &serviceManager{
		practice:     NewPracticeService(repo, publisher, NewServiceLogger(logger, "practice"), opts.Now),
		dashboard:    dashboard,
		profile:      NewProfileService(repo, NewServiceLogger(logger, "profile"), v, opts.Location, opts.Now),
		content:      NewContentService(repo, NewServiceLogger(logger, "content")),
		importExport: NewImportExportService(repo, dashboard, NewServiceLogger(logger, "import_export")),
		reconcile:    NewReconcileService(repo, publisher, NewServiceLogger(logger, "reconcile"), opts.ReconcileGrace, opts.Now),
	}
}

func (m *serviceManager) Practice() PracticeService         { return m.practice }
func (m *serviceManager) Dashboard() DashboardService       { return m.dashboard }
func (m *serviceManager) Profile() ProfileService           { return m.profile }
func (m *serviceManager) Content() ContentService           { return m.content }
func (m *serviceManager) ImportExport() ImportExportService { return m.importExport }
func (m *serviceManager) Reconcile() ReconcileService       { return m.reconcile }
