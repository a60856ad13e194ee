package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/http/respond"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// MaxProfileImageBytes caps a profile picture upload.
const MaxProfileImageBytes = 5 << 20

var profileImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// ImageStore persists an uploaded image and returns its location.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// Handler serves the caller's own profile.
type Handler struct {
	repo   Repository
	images ImageStore
	newID  func() string
	logger *logging.Logger
}

// NewHandler creates a profile handler.
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	return &Handler{repo: repo, newID: uuid.NewString, logger: logging.OrDefault(logger)}
}

// SetImageStore enables multipart profile picture uploads.
func (h *Handler) SetImageStore(images ImageStore) { h.images = images }

// GetProfile handles GET /api/user/profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, h.logger, apperr.New(apperr.KindUnauthorized, "not authorized"))
		return
	}
	user, err := h.repo.GetByID(r.Context(), caller.UserID)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"user": user})
}

// UpdateProfile handles PUT /api/user/profile. It takes a JSON body, or a multipart form
// whose text fields mirror the JSON keys plus an optional "image" file.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, h.logger, apperr.New(apperr.KindUnauthorized, "not authorized"))
		return
	}
	var (
		update ProfileUpdate
		err    error
	)
	if isMultipart(r) {
		update, err = h.decodeMultipart(w, r, caller.UserID)
	} else {
		err = respond.Decode(r, &update)
	}
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	user, err := h.repo.GetByID(r.Context(), caller.UserID)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if err := update.Apply(user); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if err := h.repo.Update(r.Context(), user); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.logger.Info("profile updated", "user_id", user.ID)
	respond.OK(w, http.StatusOK, map[string]any{"message": "Profile updated", "user": user})
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func (h *Handler) decodeMultipart(w http.ResponseWriter, r *http.Request, userID string) (ProfileUpdate, error) {
	var update ProfileUpdate
	r.Body = http.MaxBytesReader(w, r.Body, MaxProfileImageBytes+(1<<20))
	if err := r.ParseMultipartForm(MaxProfileImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return update, apperr.Validation("image must be 5 MB or smaller")
		}
		return update, apperr.Wrap(apperr.KindValidation, "invalid multipart form", err)
	}

	field := func(name string) *string {
		if vals, ok := r.MultipartForm.Value[name]; ok && len(vals) > 0 {
			v := vals[0]
			return &v
		}
		return nil
	}
	update.Name = field("name")
	update.Phone = field("phone")
	update.Address = field("address")
	update.Gender = field("gender")
	update.DOB = field("dob")

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return update, nil
	}
	if err != nil {
		return update, apperr.Wrap(apperr.KindValidation, "could not read image", err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, MaxProfileImageBytes+1))
	if err != nil {
		return update, apperr.Wrap(apperr.KindValidation, "could not read image", err)
	}
	location, err := h.storeImage(r.Context(), userID, data)
	if err != nil {
		return update, err
	}
	update.Image = &location
	return update, nil
}

// storeImage sniffs the picture and uploads it under profiles/<user>/.
func (h *Handler) storeImage(ctx context.Context, userID string, data []byte) (string, error) {
	if h.images == nil {
		return "", apperr.New(apperr.KindUpstream, "image uploads are not configured")
	}
	if len(data) == 0 {
		return "", apperr.Validation("image is empty")
	}
	if len(data) > MaxProfileImageBytes {
		return "", apperr.Validation("image must be 5 MB or smaller")
	}
	contentType := http.DetectContentType(data)
	ext, ok := profileImageTypes[contentType]
	if !ok {
		return "", apperr.Validation("image must be JPEG, PNG or WebP")
	}
	key := fmt.Sprintf("profiles/%s/%s.%s", strings.TrimSpace(userID), h.newID(), ext)
	location, err := h.images.Put(ctx, key, contentType, data)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstream, "could not store image", err)
	}
	h.logger.Info("profile image stored", "user_id", userID, "key", key, "bytes", len(data))
	return location, nil
}
