package handler

import (
	"p2p_escrow_back/pkg/middleware"
	"p2p_escrow_back/pkg/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *service.Service
}

func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) InitRoute() *gin.Engine {
	router := gin.New()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	auth := router.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.GET("/me", middleware.AuthMiddleware(), h.GetMe)
		auth.POST("/2fa/setup", middleware.AuthMiddleware(), h.SetupTwoFA)
		auth.POST("/2fa/verify", middleware.AuthMiddleware(), h.VerifyTwoFA)
	}

	api := router.Group("/api", middleware.AuthMiddleware())
	{
		wallet := api.Group("/wallet")
		{
			wallet.GET("/", h.GetWallets)
			wallet.GET("/transactions", h.GetTransactions)
			wallet.POST("/deposit", h.Deposit)
			wallet.POST("/withdraw", h.RequestWithdrawal)
			wallet.GET("/withdrawals/:id", h.GetWithdrawal)
		}

		orders := api.Group("/orders")
		{
			orders.POST("/", h.CreateOrder)
			orders.GET("/:id", h.GetOrder)
			orders.POST("/:id/deposit", h.DepositOrder)
			orders.POST("/:id/paid", h.MarkOrderPaid)
			orders.POST("/:id/deliver", h.DeliverOrder)
			orders.POST("/:id/confirm", h.ConfirmOrder)
			orders.POST("/:id/cancel", h.CancelOrder)
			orders.POST("/:id/dispute", h.DisputeOrder)
		}

		loaders := api.Group("/loader-orders")
		{
			loaders.POST("/", h.CreateLoaderOrder)
			loaders.GET("/:id", h.GetLoaderOrder)
			loaders.POST("/:id/liability", h.SelectLiability)
			loaders.POST("/:id/liability/confirm", h.ConfirmLiability)
			loaders.POST("/:id/details", h.SendPaymentDetails)
			loaders.POST("/:id/paid", h.MarkLoaderPaid)
			loaders.POST("/:id/frozen", h.MarkAssetFrozen)
			loaders.POST("/:id/complete", h.CompleteLoaderOrder)
			loaders.POST("/:id/cancel", h.CancelLoaderOrder)
			loaders.POST("/:id/dispute", h.DisputeLoaderOrder)
			loaders.POST("/:id/feedback", h.LoaderFeedback)
		}

		disputes := api.Group("/disputes")
		{
			disputes.POST("/:id/messages", h.PostDisputeMessage)
		}
	}

	admin := router.Group("/admin", middleware.AuthMiddleware())
	{
		disputes := admin.Group("/disputes")
		{
			disputes.GET("/", h.ListDisputes)
			disputes.GET("/:id", h.DisputeDetail)
			disputes.POST("/:id/resolve", h.ResolveDispute)
		}
		admin.POST("/users/:id/freeze", h.FreezeUser)
		admin.POST("/users/:id/unfreeze", h.UnfreezeUser)

		withdrawals := admin.Group("/withdrawals")
		{
			withdrawals.GET("/", h.ListPendingWithdrawals)
			withdrawals.POST("/:id/approve", h.ApproveWithdrawal)
			withdrawals.POST("/:id/reject", h.RejectWithdrawal)
		}

		treasury := admin.Group("/treasury")
		{
			treasury.GET("/", h.GetTreasury)
			treasury.PATCH("/", h.PatchTreasury)
			treasury.POST("/unlock", h.UnlockMasterWallet)
			treasury.POST("/lock", h.LockMasterWallet)
			treasury.GET("/actions", h.TreasuryActions)
		}
	}
	return router
}
