package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes registers the v1 API surface.
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	// Books: capture entry point plus the reading surface.
	books := v1.Group("/books")
	{
		books.POST("", h.Book.Create)
		books.GET("", h.Book.List)
		books.GET("/:id", h.Book.Get)
		books.DELETE("/:id", h.Book.Delete)
	}

	// Capture sessions, addressed by token.
	sessions := v1.Group("/sessions")
	{
		sessions.POST("/:token/pages", h.Session.AddPage)
		sessions.POST("/:token/complete", h.Session.Complete)
		sessions.GET("/:token/status", h.Session.Status)
	}

	// Page blocks.
	pages := v1.Group("/pages")
	{
		pages.GET("/:id/blocks", h.Block.List)
		pages.POST("/:id/detect-blocks", h.Block.Detect)
	}

	// Speech.
	blocks := v1.Group("/blocks")
	{
		blocks.POST("/:id/speak", h.Speech.SpeakBlock)
	}
	v1.POST("/tts/direct", h.Speech.SpeakText)

	// Preferences.
	v1.GET("/preferences", h.Speech.GetPreferences)
	v1.PUT("/preferences", h.Speech.UpdatePreferences)

	// Stored artifacts.
	v1.GET("/objects/*key", h.Object.Get)
}
