// Package content submits admin catalogue entries to the backend.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/backend"
)

// Backend endpoints for admin content.
const (
	EndpointCreateManga      = "/api/manga/create_manga"
	EndpointCreateVolume     = "/api/volumes/create_volume"
	EndpointAddChapter       = "/api/manga/add_chapter"
	EndpointCreateCollection = "/api/manga/create_collection"
	EndpointUploadImage      = "/api/manga/upload-image"
)

// Form messages.
const (
	MessageMangaRequired      = "Please enter a title."
	MessageMangaFailed        = "Upload failed. Please try again."
	MessageVolumeRequired     = "Please fill out all required fields."
	MessageVolumeFailed       = "Failed to add volume. Please try again."
	MessageChapterRequired    = "Please fill out all fields and select images."
	MessageChapterFailed      = "Upload failed. Please try again."
	MessageCollectionRequired = "Please enter a collection name and select at least one manga."
	MessageCollectionFailed   = "Failed to create collection. Please try again."
	MessageImageInvalid       = "Please choose an image file under 10 MB."

	maxChapterImages = 200
)

// FormError is a problem with the submitted form; Message is shown as is.
type FormError struct {
	Message string
}

func (e *FormError) Error() string { return "content: " + e.Message }

// Backend is the subset of the backend client used for admin submissions.
type Backend interface {
	Call(ctx context.Context, endpoint string, body any, opts ...backend.RequestOption) (*backend.Envelope, error)
	Upload(ctx context.Context, endpoint, contentType string, body []byte, opts ...backend.RequestOption) (*backend.Envelope, error)
}

// ServiceDeps wires the content service. OnChange runs after every successful
// submission so catalogue caches can be dropped.
type ServiceDeps struct {
	Backend  Backend
	OnChange func()
	Logger   *zap.Logger
}

// Service submits admin catalogue entries.
type Service struct {
	backend  Backend
	onChange func()
	logger   *zap.Logger
	plain    *bluemonday.Policy
}

// NewService constructs a content service.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend:  deps.Backend,
		onChange: deps.OnChange,
		logger:   logger,
		plain:    bluemonday.StrictPolicy(),
	}
}

// Result reports a successful submission.
type Result struct {
	Message  string
	ImageURL string
}

// MangaDraft is the add-manga form.
type MangaDraft struct {
	Title       string
	Description string
	Authors     []string
	Genres      []string
	Rating      float64
	Cover       *Image
	CoverURL    string
}

// CreateManga uploads a new series with either a cover file or a cover URL.
func (s *Service) CreateManga(ctx context.Context, draft MangaDraft) (Result, error) {
	title := s.text(draft.Title)
	if title == "" {
		return Result{}, &FormError{Message: MessageMangaRequired}
	}
	authors, err := json.Marshal(s.list(draft.Authors))
	if err != nil {
		return Result{}, fmt.Errorf("content: encode authors: %w", err)
	}
	genres, err := json.Marshal(s.list(draft.Genres))
	if err != nil {
		return Result{}, fmt.Errorf("content: encode genres: %w", err)
	}

	form := newFormBody()
	form.field("title", title)
	form.field("description", s.text(draft.Description))
	form.field("authors", string(authors))
	form.field("genres", string(genres))
	form.field("rating", strconv.FormatFloat(clampRating(draft.Rating), 'f', -1, 64))
	switch {
	case draft.Cover != nil:
		img, err := draft.Cover.validate()
		if err != nil {
			return Result{}, &FormError{Message: MessageImageInvalid}
		}
		form.file("cover_image", img)
	case strings.TrimSpace(draft.CoverURL) != "":
		form.field("cover_image_url", strings.TrimSpace(draft.CoverURL))
	}
	contentType, body, err := form.finish()
	if err != nil {
		return Result{}, err
	}

	env, err := s.upload(ctx, EndpointCreateManga, contentType, body)
	if err != nil {
		return Result{}, err
	}
	var created struct {
		CoverImage string `json:"cover_image"`
	}
	_ = env.Decode(&created)
	s.changed()
	return Result{Message: "Upload successful! URL: " + created.CoverImage, ImageURL: created.CoverImage}, nil
}

// VolumeDraft is the add-volume form. MangaTitle is only used in the message.
type VolumeDraft struct {
	MangaID      string
	MangaTitle   string
	VolumeNumber int
	Title        string
	Description  string
	Price        decimal.Decimal
	Stock        int
	Cover        *Image
	CoverURL     string
}

// CreateVolume adds a volume. A cover file is uploaded first and its URL is
// sent in place of cover_image_url.
func (s *Service) CreateVolume(ctx context.Context, draft VolumeDraft) (Result, error) {
	mangaID := strings.TrimSpace(draft.MangaID)
	coverURL := strings.TrimSpace(draft.CoverURL)
	if mangaID == "" || draft.VolumeNumber <= 0 || !draft.Price.IsPositive() ||
		(draft.Cover == nil && coverURL == "") {
		return Result{}, &FormError{Message: MessageVolumeRequired}
	}
	if draft.Stock < 0 {
		draft.Stock = 0
	}
	if draft.Cover != nil {
		uploaded, err := s.UploadImage(ctx, *draft.Cover)
		if err != nil {
			return Result{}, err
		}
		coverURL = uploaded
	}

	payload := map[string]any{
		"manga_id":        mangaID,
		"volume_number":   draft.VolumeNumber,
		"title":           s.text(draft.Title),
		"description":     s.text(draft.Description),
		"price":           json.Number(draft.Price.String()),
		"stock":           draft.Stock,
		"cover_image_url": coverURL,
	}
	if _, err := s.call(ctx, EndpointCreateVolume, payload); err != nil {
		return Result{}, err
	}
	s.changed()
	title := s.text(draft.MangaTitle)
	if title == "" {
		title = mangaID
	}
	return Result{
		Message:  fmt.Sprintf("Volume %d added successfully to %s!", draft.VolumeNumber, title),
		ImageURL: coverURL,
	}, nil
}

// ChapterDraft is the add-chapter form.
type ChapterDraft struct {
	MangaID       string
	ChapterNumber string
	Images        []Image
}

// AddChapter uploads the pages of a chapter in order.
func (s *Service) AddChapter(ctx context.Context, draft ChapterDraft) (Result, error) {
	mangaID := strings.TrimSpace(draft.MangaID)
	number := strings.TrimSpace(draft.ChapterNumber)
	if mangaID == "" || number == "" || len(draft.Images) == 0 {
		return Result{}, &FormError{Message: MessageChapterRequired}
	}
	if _, err := strconv.ParseFloat(number, 64); err != nil {
		return Result{}, &FormError{Message: MessageChapterRequired}
	}
	if len(draft.Images) > maxChapterImages {
		return Result{}, &FormError{Message: fmt.Sprintf("A chapter can have at most %d pages.", maxChapterImages)}
	}

	form := newFormBody()
	form.field("manga_id", mangaID)
	form.field("chapter_number", number)
	for _, raw := range draft.Images {
		img, err := raw.validate()
		if err != nil {
			return Result{}, &FormError{Message: MessageImageInvalid}
		}
		form.file("chapter_images", img)
	}
	contentType, body, err := form.finish()
	if err != nil {
		return Result{}, err
	}
	if _, err := s.upload(ctx, EndpointAddChapter, contentType, body); err != nil {
		return Result{}, err
	}
	s.changed()
	return Result{Message: fmt.Sprintf("Chapter %s uploaded successfully!", number)}, nil
}

// CollectionDraft is the add-collection form.
type CollectionDraft struct {
	Name     string
	MangaIDs []string
}

// CreateCollection groups existing series under a name.
func (s *Service) CreateCollection(ctx context.Context, draft CollectionDraft) (Result, error) {
	name := s.text(draft.Name)
	ids := uniqueIDs(draft.MangaIDs)
	if name == "" || len(ids) == 0 {
		return Result{}, &FormError{Message: MessageCollectionRequired}
	}
	if _, err := s.call(ctx, EndpointCreateCollection, map[string]any{"name": name, "manga_ids": ids}); err != nil {
		return Result{}, err
	}
	s.changed()
	return Result{Message: fmt.Sprintf("Collection '%s' created successfully!", name)}, nil
}

// UploadImage stores an image on the backend and returns its public URL.
func (s *Service) UploadImage(ctx context.Context, raw Image) (string, error) {
	img, err := raw.validate()
	if err != nil {
		return "", &FormError{Message: MessageImageInvalid}
	}
	form := newFormBody()
	form.file("image", img)
	contentType, body, err := form.finish()
	if err != nil {
		return "", err
	}
	env, err := s.upload(ctx, EndpointUploadImage, contentType, body)
	if err != nil {
		return "", err
	}
	url := imageURL(env)
	if url == "" {
		return "", &backend.Error{Kind: backend.KindDecode, Path: EndpointUploadImage, Message: "response carried no image url"}
	}
	return url, nil
}

func imageURL(env *backend.Envelope) string {
	type urls struct {
		URL        string `json:"url"`
		ImageURL   string `json:"image_url"`
		SecureURL  string `json:"secure_url"`
		CoverImage string `json:"cover_image"`
	}
	pick := func(u urls) string {
		for _, v := range []string{u.URL, u.ImageURL, u.SecureURL, u.CoverImage} {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
		return ""
	}
	var data urls
	if env.Decode(&data) == nil {
		if v := pick(data); v != "" {
			return v
		}
	}
	var body urls
	if env.DecodeBody(&body) == nil {
		return pick(body)
	}
	return ""
}

func (s *Service) call(ctx context.Context, endpoint string, body any) (*backend.Envelope, error) {
	if s == nil || s.backend == nil {
		return nil, backend.ErrNotConfigured
	}
	env, err := s.backend.Call(ctx, endpoint, body, backend.WithIdempotencyKey())
	if err != nil {
		s.logger.Warn("admin submission failed", zap.String("endpoint", endpoint), zap.Error(err))
	}
	return env, err
}

func (s *Service) upload(ctx context.Context, endpoint, contentType string, body []byte) (*backend.Envelope, error) {
	if s == nil || s.backend == nil {
		return nil, backend.ErrNotConfigured
	}
	env, err := s.backend.Upload(ctx, endpoint, contentType, body, backend.WithIdempotencyKey())
	if err != nil {
		s.logger.Warn("admin upload failed", zap.String("endpoint", endpoint), zap.Int("bytes", len(body)), zap.Error(err))
	}
	return env, err
}

func (s *Service) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// text strips markup from a plain-text field.
func (s *Service) text(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.plain.Sanitize(value)))
}

func (s *Service) list(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if cleaned := s.text(v); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func clampRating(r float64) float64 {
	switch {
	case math.IsNaN(r), r < 0:
		return 0
	case r > 10:
		return 10
	}
	return r
}

// SplitList splits a comma separated form value into trimmed entries.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
