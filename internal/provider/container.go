package provider

import (
	"github.com/specsflow-next/internal/authz"
	"github.com/specsflow-next/internal/cache"
	"github.com/specsflow-next/internal/config"
	"github.com/specsflow-next/internal/logger"
	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/queue"
	"github.com/specsflow-next/internal/repository"
	"github.com/specsflow-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	PrescriptionRepo repository.PrescriptionRepository
	SpecsOrderRepo   repository.SpecsOrderRepository
	LensTaskRepo     repository.LensTaskRepository
	DeliveryRepo     repository.DeliveryRepository
	NotificationRepo repository.NotificationRepository
	ContactRepo      repository.ContactRepository
	InventoryRepo    repository.InventoryRepository
	InvoiceRepo      repository.InvoiceRepository
	DashboardRepo    repository.DashboardRepository

	// Gateways
	InventoryGateway *service.StockInventoryGateway
	InvoiceGateway   *service.LedgerInvoiceGateway
	NotificationSink service.NotificationSink

	// Services
	AuthzService        *authz.Service
	PrescriptionService *service.PrescriptionService
	OrderService        *service.OrderService
	TaskService         *service.TaskService
	DeliveryService     *service.DeliveryService
	NotificationService *service.NotificationService
	WorkflowService     *service.WorkflowService
	DashboardService    *service.DashboardService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端，未启用时返回禁用状态的客户端，通知改为同步投递
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.PrescriptionRepo = repository.NewPrescriptionRepository(db)
	c.SpecsOrderRepo = repository.NewSpecsOrderRepository(db)
	c.LensTaskRepo = repository.NewLensTaskRepository(db)
	c.DeliveryRepo = repository.NewDeliveryRepository(db)
	c.NotificationRepo = repository.NewNotificationRepository(db)
	c.ContactRepo = repository.NewContactRepository(db)
	c.InventoryRepo = repository.NewInventoryRepository(db)
	c.InvoiceRepo = repository.NewInvoiceRepository(db)
	c.DashboardRepo = repository.NewDashboardRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.NotificationSink = newNotificationSink(&c.Config.Email)
	c.InventoryGateway = service.NewStockInventoryGateway(c.InventoryRepo)
	c.InvoiceGateway = service.NewLedgerInvoiceGateway(c.InvoiceRepo)

	workflowCfg := c.Config.Workflow
	c.NotificationService = service.NewNotificationService(c.NotificationRepo, c.ContactRepo, c.NotificationSink, c.QueueClient, workflowCfg)
	c.PrescriptionService = service.NewPrescriptionService(c.PrescriptionRepo)
	c.OrderService = service.NewOrderService(c.SpecsOrderRepo, c.PrescriptionRepo, c.LensTaskRepo, c.DeliveryRepo, c.InventoryGateway, c.InvoiceGateway, c.NotificationService, workflowCfg)
	c.TaskService = service.NewTaskService(c.LensTaskRepo, c.SpecsOrderRepo, c.PrescriptionRepo, c.DeliveryRepo, c.NotificationService, workflowCfg)
	c.DeliveryService = service.NewDeliveryService(c.DeliveryRepo, c.SpecsOrderRepo, c.PrescriptionRepo, c.NotificationService, workflowCfg)
	c.WorkflowService = service.NewWorkflowService(c.SpecsOrderRepo, c.PrescriptionRepo, c.LensTaskRepo, c.DeliveryRepo, c.NotificationRepo)
	c.DashboardService = service.NewDashboardService(c.DashboardRepo)
}

// newNotificationSink 邮件启用时走 SMTP，否则仅记录日志
func newNotificationSink(cfg *config.EmailConfig) service.NotificationSink {
	if cfg != nil && cfg.Enabled {
		return service.NewEmailSink(cfg)
	}
	logger.Infow("provider_notification_sink_log_only")
	return service.LogSink{}
}

// Close 释放队列客户端与缓存连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
