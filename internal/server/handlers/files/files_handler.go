package files

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openmined/skywriter/internal/fileinfo"
	"github.com/openmined/skywriter/internal/server/handlers/api"
	"github.com/openmined/skywriter/internal/server/store"
)

type FilesHandler struct {
	store store.Store
}

func New(store store.Store) *FilesHandler {
	return &FilesHandler{store: store}
}

// FileInfo answers the fingerprint of one identity. A missing file is a
// normal answer with exists=false.
func (h *FilesHandler) FileInfo(ctx *gin.Context) {
	identity, ok := identityParam(ctx)
	if !ok {
		return
	}

	fi, err := h.store.FileInfo(ctx.Request.Context(), identity)
	if err != nil {
		abortWithStoreError(ctx, err, api.CodeInternalError)
		return
	}

	ctx.PureJSON(http.StatusOK, fi)
}

// DirInfo answers the fingerprints of every file under an identity, relative
// to it.
func (h *FilesHandler) DirInfo(ctx *gin.Context) {
	identity, ok := identityParam(ctx)
	if !ok {
		return
	}

	listing, err := h.store.DirInfo(ctx.Request.Context(), identity)
	if err != nil {
		abortWithStoreError(ctx, err, api.CodeInternalError)
		return
	}

	ctx.PureJSON(http.StatusOK, &DirInfoResponse{Files: listing.Files, Skipped: listing.Skipped})
}

// Download streams the raw stored bytes. The fingerprint travels in headers
// so the client can verify what it received.
func (h *FilesHandler) Download(ctx *gin.Context) {
	identity, ok := identityParam(ctx)
	if !ok {
		return
	}

	obj, err := h.store.Open(ctx.Request.Context(), identity)
	if err != nil {
		abortWithStoreError(ctx, err, api.CodeInternalError)
		return
	}
	defer obj.Body.Close()

	ctx.DataFromReader(http.StatusOK, obj.Size, "application/octet-stream", obj.Body, map[string]string{
		HeaderDigest:  obj.Info.Digest,
		HeaderSeconds: strconv.FormatInt(obj.Info.Seconds, 10),
	})
}

// Upload stores the multipart "file" field under the identity, creating
// intermediate directories.
func (h *FilesHandler) Upload(ctx *gin.Context) {
	identity, ok := identityParam(ctx)
	if !ok {
		return
	}
	if identity == "" {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidPath, errors.New("upload needs a file identity"))
		return
	}

	file, err := ctx.FormFile(FormFileKey)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid file: %w", err))
		return
	}

	fd, err := file.Open()
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid file: %w", err))
		return
	}
	defer fd.Close()

	fi, err := h.store.Put(ctx.Request.Context(), identity, fd)
	if err != nil {
		abortWithStoreError(ctx, err, api.CodeStorageFailed)
		return
	}

	ctx.PureJSON(http.StatusCreated, fi)
}

func identityParam(ctx *gin.Context) (string, bool) {
	identity, err := store.CleanIdentity(ctx.Param("identity"))
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidPath, err)
		return "", false
	}
	return identity, true
}

// abortWithStoreError maps store failures to statuses. fallback is the code
// used for anything unclassified.
func abortWithStoreError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrInvalidIdentity):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidPath, err)
	case errors.Is(err, fileinfo.ErrNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeFileNotFound, err)
	case errors.Is(err, fileinfo.ErrNotAFile):
		api.AbortWithError(ctx, http.StatusUnprocessableEntity, api.CodeNotAFile, err)
	case errors.Is(err, fileinfo.ErrNotADirectory):
		api.AbortWithError(ctx, http.StatusUnprocessableEntity, api.CodeNotADirectory, err)
	case errors.Is(err, fileinfo.ErrUnreadable), errors.Is(err, store.ErrStorage):
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeStorageFailed, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, fallback, err)
	}
}
