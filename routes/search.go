package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"ai-search-service/internal/logger"
	"ai-search-service/internal/queue"
	"ai-search-service/models"
	"ai-search-service/services"
	"ai-search-service/utils"
)

// SearchDeps bundles everything the search API needs.
type SearchDeps struct {
	Gateway  *services.SearchGateway
	Statuses services.IndexStatusStore
	Settings services.SettingsSource
	History  services.HistorySink
	Repo     services.ContentRepository
	Queue    *asynq.Client
}

func SetupSearchRoutes(router *gin.Engine, deps SearchDeps) {
	api := router.Group("/api/search")

	api.POST("", func(c *gin.Context) {
		var query models.SearchQuery
		if err := c.ShouldBindJSON(&query); err != nil {
			utils.RespondWithBadRequest(c, "Invalid search request", gin.H{"error": err.Error()})
			return
		}

		response, err := deps.Gateway.Search(c.Request.Context(), query)
		if err != nil {
			logger.Error("search failed", "query", query.Query, "error", err)
			utils.RespondWithInternalError(c, "Search failed", nil)
			return
		}
		c.JSON(http.StatusOK, response)
	})

	api.GET("/suggestions", func(c *gin.Context) {
		partial := c.Query("q")
		suggestions := deps.Gateway.Suggestions(c.Request.Context(), partial)
		c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
	})

	// Indexing runs in the worker; the API only enqueues.
	api.POST("/index/:collectionId", func(c *gin.Context) {
		collectionID := c.Param("collectionId")

		collection, err := deps.Repo.GetCollection(c.Request.Context(), collectionID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to look up collection", nil)
			return
		}
		if collection == nil {
			utils.RespondWithNotFound(c, "Collection not found")
			return
		}

		task, err := queue.NewIndexCollectionTask(collectionID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create indexing task", nil)
			return
		}
		if _, err := deps.Queue.EnqueueContext(c.Request.Context(), task); err != nil {
			logger.Error("failed to enqueue index task", "collection_id", collectionID, "error", err)
			utils.RespondWithInternalError(c, "Failed to enqueue indexing task", nil)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "collection_id": collectionID})
	})

	api.POST("/index/content/:contentId", func(c *gin.Context) {
		contentID := c.Param("contentId")

		task, err := queue.NewIndexContentTask(contentID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create indexing task", nil)
			return
		}
		if _, err := deps.Queue.EnqueueContext(c.Request.Context(), task); err != nil {
			logger.Error("failed to enqueue content index task", "content_id", contentID, "error", err)
			utils.RespondWithInternalError(c, "Failed to enqueue indexing task", nil)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "content_id": contentID})
	})

	api.GET("/index-status", func(c *gin.Context) {
		statuses, err := deps.Statuses.GetAll(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to fetch index statuses", nil)
			return
		}
		if statuses == nil {
			statuses = []models.IndexStatus{}
		}
		c.JSON(http.StatusOK, gin.H{"statuses": statuses})
	})

	api.GET("/index-status/:collectionId", func(c *gin.Context) {
		status, err := deps.Statuses.Get(c.Request.Context(), c.Param("collectionId"))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to fetch index status", nil)
			return
		}
		if status == nil {
			utils.RespondWithNotFound(c, "No index status for collection")
			return
		}
		c.JSON(http.StatusOK, status)
	})

	api.GET("/collections", func(c *gin.Context) {
		infos, err := listCollectionInfo(c, deps)
		if err != nil {
			logger.Error("failed to list collections", "error", err)
			utils.RespondWithInternalError(c, "Failed to list collections", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"collections": infos})
	})

	api.GET("/analytics", func(c *gin.Context) {
		analytics, err := deps.History.Analytics(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to compute analytics", nil)
			return
		}
		c.JSON(http.StatusOK, analytics)
	})

	api.GET("/settings", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Settings.Load(c.Request.Context()))
	})

	api.PUT("/settings", func(c *gin.Context) {
		var patch models.SearchSettingsPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			utils.RespondWithBadRequest(c, "Invalid settings payload", gin.H{"error": err.Error()})
			return
		}

		updated := patch.Apply(deps.Settings.Load(c.Request.Context()))
		if err := deps.Settings.Save(c.Request.Context(), updated); err != nil {
			utils.RespondWithInternalError(c, "Failed to save settings", nil)
			return
		}
		c.JSON(http.StatusOK, updated)
	})

	api.POST("/sync", func(c *gin.Context) {
		settings := deps.Settings.Load(c.Request.Context())
		if len(settings.SelectedCollections) == 0 {
			c.JSON(http.StatusOK, gin.H{"status": "nothing to sync", "queued": 0})
			return
		}

		queued := 0
		for _, collectionID := range settings.SelectedCollections {
			task, err := queue.NewIndexCollectionTask(collectionID)
			if err != nil {
				continue
			}
			if _, err := deps.Queue.EnqueueContext(c.Request.Context(), task); err != nil {
				logger.Error("failed to enqueue sync task", "collection_id", collectionID, "error", err)
				continue
			}
			queued++
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "queued": queued})
	})
}

// listCollectionInfo joins active collections with their index state for
// the admin UI.
func listCollectionInfo(c *gin.Context, deps SearchDeps) ([]models.CollectionInfo, error) {
	ctx := c.Request.Context()

	collections, err := deps.Repo.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	statuses, err := deps.Statuses.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	settings := deps.Settings.Load(ctx)

	statusByID := make(map[string]models.IndexStatus, len(statuses))
	for _, status := range statuses {
		statusByID[status.CollectionID] = status
	}
	dismissed := make(map[string]bool, len(settings.DismissedCollections))
	for _, id := range settings.DismissedCollections {
		dismissed[id] = true
	}

	infos := make([]models.CollectionInfo, 0, len(collections))
	for _, collection := range collections {
		count, err := deps.Repo.CountItems(ctx, collection.ID)
		if err != nil {
			logger.Warn("failed to count collection items", "collection_id", collection.ID, "error", err)
		}
		status, indexed := statusByID[collection.ID]
		infos = append(infos, models.CollectionInfo{
			ID:          collection.ID,
			Name:        collection.Name,
			DisplayName: collection.DisplayName,
			Description: collection.Description,
			ItemCount:   count,
			IsIndexed:   indexed && status.Status == models.IndexStateCompleted,
			IsDismissed: dismissed[collection.ID],
			IsNew:       !indexed && !dismissed[collection.ID],
		})
	}
	return infos, nil
}
