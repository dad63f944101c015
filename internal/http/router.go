// README: Route table. Request lifecycle, interest signals, legacy offers.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"camionback/internal/http/handlers"
	"camionback/internal/http/middleware"
)

func NewRouter(rh *handlers.RequestHandler, ih *handlers.InterestHandler, oh *handlers.OfferHandler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	requests := api.Group("/requests")
	{
		requests.POST("", rh.Create)
		requests.GET("/:id", rh.Get)
		requests.POST("/:id/qualify", rh.Qualify)
		requests.POST("/:id/start", rh.Start)
		requests.POST("/:id/complete", rh.Complete)
		requests.POST("/:id/cancel", rh.Cancel)
		requests.POST("/:id/archive", rh.Archive)
		requests.POST("/:id/republish", rh.Republish)
		requests.POST("/:id/requalify", rh.Requalify)
		requests.PATCH("/:id/coordination", rh.UpdateCoordination)
		requests.PATCH("/:id/visibility", rh.SetVisibility)
		requests.POST("/:id/notes", rh.AddNote)
		requests.GET("/:id/notes", rh.ListNotes)

		requests.POST("/:id/interests", ih.Express)
		requests.GET("/:id/interests", ih.List)
		requests.DELETE("/:id/interests/:transporterId", ih.Withdraw)
		requests.POST("/:id/assign", ih.Assign)

		requests.POST("/:id/offers", oh.Submit)
		requests.GET("/:id/offers", oh.ListByRequest)
	}

	interests := api.Group("/interests")
	{
		interests.PATCH("/:id/visibility", ih.SetVisibility)
	}

	offers := api.Group("/offers")
	{
		offers.POST("/:id/accept", oh.Accept)
		offers.POST("/:id/reject", oh.Reject)
		offers.POST("/:id/complete", oh.Complete)
	}

	return r
}
