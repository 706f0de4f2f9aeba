package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reelradar/harvester/app/database"
	"github.com/reelradar/harvester/app/harvest"
	"github.com/reelradar/harvester/app/scrape"
	"github.com/reelradar/harvester/app/tasks"
)

const (
	defaultDaysLimit  = 30
	defaultFetchLimit = 20
)

func NewHandler(datasetRepo database.DatasetRepository, sourceRepo database.SourceRepository,
	itemRepo database.ItemRepository, runRepo database.RunRepository,
	scheduler tasks.TaskSchedulerInterface, runner tasks.BatchRunner,
	headlines tasks.HeadlineStage, analysis tasks.AnalysisStage, opts Options) *Handler {
	return &Handler{
		datasetRepo: datasetRepo,
		sourceRepo:  sourceRepo,
		itemRepo:    itemRepo,
		runRepo:     runRepo,
		scheduler:   scheduler,
		runner:      runner,
		headlines:   headlines,
		analysis:    analysis,
		opts:        opts,
		now:         time.Now,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": h.now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.itemRepo.GetItemCount(""); err == nil {
		health["items"] = count
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) TriggerHarvestBatch(c *gin.Context) {
	task := tasks.NewHarvestBatchTask(h.runner, h.opts.MaxSourcesPerRun,
		h.opts.InterSourceDelay, h.opts.WallClockBudget)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue harvest batch", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Queue is full"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
}

func (h *Handler) TriggerAccountSweep(c *gin.Context) {
	accountID := c.Param("id")

	task := tasks.NewSweepAccountTask(h.runner, accountID)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue account sweep", "account", accountID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Queue is full"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled", "account_id": accountID})
}

func (h *Handler) CreateDataset(c *gin.Context) {
	var req createDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.datasetRepo.CreateDataset(req.AccountID, req.Name)
	if err != nil {
		slog.Error("Database error", "operation", "create_dataset", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) CreateSource(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dataset, err := h.datasetRepo.GetDataset(req.DatasetID)
	if err != nil {
		slog.Error("Database error", "operation", "get_dataset", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if dataset == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
		return
	}

	username := req.Username
	if username == "" {
		username, err = scrape.ExtractUsername(req.ProfileURL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot derive username from profile URL"})
			return
		}
	}

	source := database.Source{
		DatasetID:      req.DatasetID,
		ProfileURL:     req.ProfileURL,
		Username:       username,
		Active:         true,
		ContentTypes:   req.ContentTypes,
		DaysLimit:      req.DaysLimit,
		MinViewsFilter: req.MinViewsFilter,
		MinLikesFilter: req.MinLikesFilter,
		FetchLimit:     req.FetchLimit,
	}
	if len(source.ContentTypes) == 0 {
		source.ContentTypes = []string{string(scrape.TypeReel), string(scrape.TypeCarousel)}
	}
	if source.DaysLimit <= 0 {
		source.DaysLimit = defaultDaysLimit
	}
	if source.FetchLimit <= 0 {
		source.FetchLimit = defaultFetchLimit
	}

	id, err := h.sourceRepo.CreateSource(source)
	if err != nil {
		slog.Error("Database error", "operation", "create_source", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "username": username})
}

func (h *Handler) ListSources(c *gin.Context) {
	datasetID := c.Query("dataset")
	if datasetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dataset query parameter is required"})
		return
	}

	sources, err := h.sourceRepo.GetSourcesByDataset(datasetID)
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "dataset", datasetID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]sourceResponse, 0, len(sources))
	for _, s := range sources {
		out = append(out, toSourceResponse(s))
	}

	c.JSON(http.StatusOK, gin.H{"sources": out, "count": len(out)})
}

// DeactivateSource retires a source from future harvests. Rows are
// never deleted so past runs keep a valid reference.
func (h *Handler) DeactivateSource(c *gin.Context) {
	id := c.Param("id")

	source, err := h.sourceRepo.GetSource(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if source == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	if err := h.sourceRepo.SetSourceActive(id, false); err != nil {
		slog.Error("Database error", "operation", "deactivate_source", "source", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "active": false})
}

// GetDatasetStatus reports whether a harvest is currently running for
// any of the dataset's sources, or surfaces a recent failure.
func (h *Handler) GetDatasetStatus(c *gin.Context) {
	datasetID := c.Param("id")

	running, err := h.runRepo.GetRunningRunForDataset(datasetID)
	if err != nil {
		slog.Error("Database error", "operation", "get_running_run", "dataset", datasetID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if running != nil {
		resp := statusResponse{
			Running:    true,
			DaysRange:  running.DaysRange,
			PostsFound: running.PostsFound,
		}
		if source, err := h.sourceRepo.GetSource(running.SourceID); err == nil && source != nil {
			resp.Source = source.Username
			resp.MinViews = source.MinViewsFilter
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	since := h.now().Add(-failureFreshness)
	failed, err := h.runRepo.GetRecentFailedRunForDataset(datasetID, since)
	if err != nil {
		slog.Error("Database error", "operation", "get_failed_run", "dataset", datasetID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if failed != nil {
		resp := statusResponse{Running: false, Error: true}
		if failed.Error != nil {
			resp.Message = *failed.Error
		}
		if source, err := h.sourceRepo.GetSource(failed.SourceID); err == nil && source != nil {
			resp.Source = source.Username
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	c.JSON(http.StatusOK, statusResponse{Running: false})
}

func (h *Handler) GetDatasetProgress(c *gin.Context) {
	datasetID := c.Param("id")

	progress, err := h.itemRepo.GetAnalysisProgress(datasetID, h.opts.AnalysisMinViews, analysisActivityWindow)
	if err != nil {
		slog.Error("Database error", "operation", "get_analysis_progress", "dataset", datasetID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, progressResponse{
		Total:     progress.Total,
		Eligible:  progress.Eligible,
		Analyzed:  progress.Analyzed,
		Pending:   progress.Eligible - progress.Analyzed,
		IsRunning: progress.RecentlyAnalyzed > 0,
	})
}

func (h *Handler) TriggerHeadlineExtraction(c *gin.Context) {
	datasetID := c.Param("id")

	task := tasks.NewExtractHeadlinesTask(h.headlines, datasetID)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue headline extraction", "dataset", datasetID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Queue is full"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled", "dataset_id": datasetID})
}

func (h *Handler) TriggerContentAnalysis(c *gin.Context) {
	datasetID := c.Param("id")

	task := tasks.NewAnalyzeContentTask(h.analysis, datasetID)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue content analysis", "dataset", datasetID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Queue is full"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled", "dataset_id": datasetID})
}

// ListItems returns the deduplicated, virality-ordered view across
// all datasets.
func (h *Handler) ListItems(c *gin.Context) {
	items, err := h.itemRepo.GetAllItems()
	if err != nil {
		slog.Error("Database error", "operation", "list_items", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	resolved := harvest.Resolve(items)

	out := make([]itemResponse, 0, len(resolved))
	for _, item := range resolved {
		out = append(out, toItemResponse(item))
	}

	c.JSON(http.StatusOK, gin.H{"items": out, "count": len(out)})
}

func toSourceResponse(s database.Source) sourceResponse {
	return sourceResponse{
		ID:             s.ID,
		DatasetID:      s.DatasetID,
		ProfileURL:     s.ProfileURL,
		Username:       s.Username,
		Active:         s.Active,
		ContentTypes:   s.ContentTypes,
		DaysLimit:      s.DaysLimit,
		MinViewsFilter: s.MinViewsFilter,
		MinLikesFilter: s.MinLikesFilter,
		FetchLimit:     s.FetchLimit,
		LastScrapedAt:  s.LastScrapedAt,
	}
}

func toItemResponse(item database.ContentItem) itemResponse {
	return itemResponse{
		ID:             item.ID,
		ExternalID:     item.ExternalID,
		DatasetID:      item.DatasetID,
		SourceURL:      item.SourceURL,
		OriginalURL:    item.OriginalURL,
		CoverURL:       item.CoverURL,
		VideoURL:       item.VideoURL,
		Views:          item.Views,
		Likes:          item.Likes,
		Comments:       item.Comments,
		PublishedAt:    item.PublishedAt,
		ContentType:    item.ContentType,
		Description:    item.Description,
		Headline:       item.Headline,
		Transcript:     item.Transcript,
		ViralityScore:  item.ViralityScore,
		Topic:          item.AITopic,
		Subtopic:       item.AISubtopic,
		HookType:       item.AIHookType,
		ContentFormula: item.AIContentFormula,
		Tags:           item.AITags,
		SuccessReason:  item.AISuccessReason,
		Trigger:        item.AIEmotionalTrigger,
		TargetAudience: item.AITargetAudience,
		AnalyzedAt:     item.AIAnalyzedAt,
	}
}
