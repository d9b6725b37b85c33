package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"read-aloud-api/internal/infrastructure/storage"
	"read-aloud-api/internal/interfaces/http/dto"
)

// ObjectHandler streams stored artifacts (page images, audio, alignments).
type ObjectHandler struct {
	store storage.ArtifactStore
}

// NewObjectHandler creates the object handler.
func NewObjectHandler(store storage.ArtifactStore) *ObjectHandler {
	return &ObjectHandler{store: store}
}

// Get streams one blob with its inferred content type. Artifacts are
// content-addressed or timestamped, so clients may cache them.
// GET /objects/*key
func (h *ObjectHandler) Get(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		dto.NotFound(c, "object not found")
		return
	}

	rc, info, err := h.store.Stream(c.Request.Context(), key)
	if err != nil {
		dto.NotFound(c, "object not found")
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "public, max-age=3600")
	c.DataFromReader(http.StatusOK, info.ContentLength, info.ContentType, rc, nil)
}
