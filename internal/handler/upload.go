package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ngconnect/marketplace-api/internal/httperr"
	"github.com/ngconnect/marketplace-api/internal/middleware"
	"github.com/ngconnect/marketplace-api/internal/model"
	"github.com/ngconnect/marketplace-api/internal/repository"
	"github.com/ngconnect/marketplace-api/internal/storage"
)

const (
	maxUploadFiles    = 5
	maxUploadBytes    = 5 << 20 // 5 MB per file
	uploadFormField   = "images"
	uploadKeyTemplate = "listings/%d/%s%s"
)

var allowedImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// UploadHandler receives listing image uploads, pushes the blobs to
// object storage and records the resulting URLs.
type UploadHandler struct {
	Listings *repository.ListingRepo
	Images   *repository.ImageRepo
	Store    storage.Uploader
}

func NewUploadHandler(l *repository.ListingRepo, i *repository.ImageRepo, store storage.Uploader) *UploadHandler {
	return &UploadHandler{Listings: l, Images: i, Store: store}
}

// UploadImages handles POST /api/listings/:id/images. At most five
// jpeg or png files of up to 5 MB each, accepted only from the
// listing's owner. Rows are recorded only after every blob is stored.
func (h *UploadHandler) UploadImages(c echo.Context) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	if h.Store == nil {
		return httperr.Internal("image storage is not configured")
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid listing id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	listing, err := h.Listings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return httperr.NotFound("Listing not found")
		}
		return httperr.Store(err)
	}
	if listing.CreatedUser != p.ID {
		return httperr.Forbidden("You can only upload images to your own listings")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return httperr.BadRequest("multipart form is required")
	}
	files := form.File[uploadFormField]
	if len(files) == 0 {
		return httperr.BadRequest("at least one image is required")
	}
	if len(files) > maxUploadFiles {
		return httperr.BadRequest(fmt.Sprintf("at most %d images per upload", maxUploadFiles))
	}

	images := make([]model.ListingImage, 0, len(files))
	for _, fh := range files {
		url, err := h.storeOne(ctx, id, fh)
		if err != nil {
			return err
		}
		images = append(images, model.ListingImage{ListingID: id, URL: url})
	}
	if err := h.Images.CreateBulk(ctx, images); err != nil {
		return httperr.Store(err)
	}

	stored, err := h.Images.ListByListing(ctx, id)
	if err != nil {
		return httperr.Store(err)
	}
	return c.JSON(http.StatusCreated, stored)
}

func (h *UploadHandler) storeOne(ctx context.Context, listingID uint64, fh *multipart.FileHeader) (string, error) {
	if fh.Size > maxUploadBytes {
		return "", httperr.BadRequest(fmt.Sprintf("%s exceeds the 5 MB limit", fh.Filename))
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	contentType, ok := allowedImageTypes[ext]
	if !ok {
		return "", httperr.BadRequest("only jpeg and png images are accepted")
	}
	f, err := fh.Open()
	if err != nil {
		return "", httperr.Internal("failed to read upload")
	}
	defer f.Close()

	key := fmt.Sprintf(uploadKeyTemplate, listingID, uuid.NewString(), ext)
	url, err := h.Store.Upload(ctx, key, contentType, f)
	if err != nil {
		return "", httperr.Internal("failed to store image")
	}
	return url, nil
}
