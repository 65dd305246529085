package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/specsflow-next/internal/authz"
	"github.com/specsflow-next/internal/cache"
	"github.com/specsflow-next/internal/config"
	publichandlers "github.com/specsflow-next/internal/http/handlers/public"
	staffhandlers "github.com/specsflow-next/internal/http/handlers/staff"
	"github.com/specsflow-next/internal/http/response"
	"github.com/specsflow-next/internal/logger"
	"github.com/specsflow-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按员工端/患者端分组）
	staffHandler := staffhandlers.New(c)
	publicHandler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "sf"
	}
	redisClient := cache.Client()
	verifyPickupRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:verify_pickup", redisPrefix),
		WindowSeconds: cfg.Security.VerifyRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.VerifyRateLimit.MaxAttempts,
		Message:       "too many pickup verification attempts",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 员工端接口（医生、门店、配镜师、快递员、管理员）
		staff := apiV1.Group("/staff")
		staff.Use(ActorJWTMiddleware(cfg.JWT), ActorRBACMiddleware(c.AuthzService))
		{
			// 处方
			staff.POST("/prescriptions", staffHandler.CreatePrescription)
			staff.GET("/prescriptions", staffHandler.ListPrescriptions)
			staff.GET("/prescriptions/:id", staffHandler.GetPrescription)

			// 订单
			staff.POST("/orders", staffHandler.CreateOrder)
			staff.GET("/orders", staffHandler.ListOrders)
			staff.GET("/orders/:id", staffHandler.GetOrder)
			staff.POST("/orders/:id/confirm", staffHandler.ConfirmOrder)
			staff.POST("/orders/:id/cancel", staffHandler.CancelOrder)
			staff.POST("/orders/:id/tasks", staffHandler.AssignTask)
			staff.GET("/orders/:id/workflow", staffHandler.GetOrderWorkflow)

			// 配镜任务
			staff.GET("/tasks", staffHandler.ListTasks)
			staff.GET("/tasks/:id", staffHandler.GetTask)
			staff.PATCH("/tasks/:id/progress", staffHandler.UpdateTaskProgress)
			staff.POST("/tasks/:id/qc", staffHandler.RecordTaskQC)
			staff.POST("/tasks/:id/payout", staffHandler.RecordTaskPayout)
			staff.POST("/tasks/:id/rework", staffHandler.AssignRework)
			staff.POST("/tasks/:id/send-to-store", staffHandler.SendTaskToStore)

			// 交付
			staff.GET("/deliveries", staffHandler.ListDeliveries)
			staff.GET("/deliveries/:id", staffHandler.GetDelivery)
			staff.POST("/deliveries/:id/schedule", staffHandler.ScheduleDelivery)
			staff.POST("/deliveries/:id/ship", staffHandler.ShipDelivery)
			staff.POST("/deliveries/:id/pickup-token", staffHandler.GeneratePickupToken)
			staff.POST("/deliveries/:id/verify-pickup", RateLimitMiddleware(redisClient, verifyPickupRule, KeyByActorAndParam("id")), staffHandler.VerifyPickup)
			staff.POST("/deliveries/:id/delivered", staffHandler.ConfirmDelivered)
			staff.POST("/deliveries/:id/failed", staffHandler.MarkDeliveryFailed)

			// 通知
			staff.GET("/notifications", staffHandler.ListNotifications)
			staff.POST("/notifications", staffHandler.SendNotification)
			staff.PATCH("/notifications/:id/read", staffHandler.MarkNotificationRead)

			// 看板与库存
			staff.GET("/dashboard", staffHandler.GetDashboard)
			staff.GET("/inventory/frames/:frame_ref", staffHandler.CheckFrameAvailability)

			// 权限
			staff.GET("/authz/catalog", func(ctx *gin.Context) {
				response.Success(ctx, buildRouteCatalog(r))
			})
			staff.GET("/authz/roles", staffHandler.ListAuthzRoles)
			staff.DELETE("/authz/roles/:role", staffHandler.DeleteAuthzRole)
			staff.GET("/authz/roles/:role/policies", staffHandler.GetAuthzRolePolicies)
			staff.POST("/authz/roles/:role/policies", staffHandler.GrantAuthzPolicy)
			staff.DELETE("/authz/roles/:role/policies", staffHandler.RevokeAuthzPolicy)
			staff.POST("/authz/reload", staffHandler.ReloadAuthzPolicy)
		}

		// 患者端接口
		public := apiV1.Group("/public")
		public.Use(ActorJWTMiddleware(cfg.JWT), ActorRBACMiddleware(c.AuthzService))
		{
			public.GET("/orders/:order_no/workflow", publicHandler.GetOrderWorkflow)
			public.POST("/orders/:order_no/pickup-qr", publicHandler.IssuePickupQR)
			public.GET("/notifications", publicHandler.ListNotifications)
			public.PATCH("/notifications/:id/read", publicHandler.MarkNotificationRead)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

type routeCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildRouteCatalog(engine *gin.Engine) []routeCatalogItem {
	if engine == nil {
		return []routeCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]routeCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/staff/") && !strings.HasPrefix(item.Path, "/api/v1/public/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, routeCatalogItem{
			Module:     deriveRouteModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveRouteModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] == "public" {
		return "patient"
	}
	return segments[1]
}
