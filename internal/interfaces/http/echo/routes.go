package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, importHandler *ImportHandler, memberHandler *MemberHandler) {
	imports := server.Group("/api/v1/imports")
	imports.POST("/jobs", importHandler.StartImport)
	imports.POST("/preview", importHandler.Preview)
	imports.POST("/execute", importHandler.Execute)
	imports.POST("/execute-batched", importHandler.ExecuteBatched)
	imports.POST("/retry", importHandler.Retry)
	imports.POST("/fixes/suggest", importHandler.SuggestFixes)
	imports.POST("/:id/rollback", importHandler.Rollback)
	imports.GET("/history", importHandler.History)
	imports.GET("/statistics", importHandler.Statistics)

	server.GET("/api/v1/members/:id", memberHandler.GetMemberByID)
}
