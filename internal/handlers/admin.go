package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/account"
	"github.com/NaveenV-27/MangaKart-ui/internal/backend"
	"github.com/NaveenV-27/MangaKart-ui/internal/catalog"
	"github.com/NaveenV-27/MangaKart-ui/internal/content"
	mw "github.com/NaveenV-27/MangaKart-ui/internal/middleware"
	"github.com/NaveenV-27/MangaKart-ui/internal/web"
)

const (
	maxMultipartMemory   = 32 << 20
	messageSignupCreated = "Account created successfully! Redirecting to login..."
)

type adminAction struct {
	Title       string
	Description string
	Href        string
}

var adminActions = []adminAction{
	{Title: "Add New Manga", Description: "Create a new manga series entry", Href: "/admin/add-manga"},
	{Title: "Add Volumes", Description: "Manage and add manga volumes", Href: "/admin/add-volume"},
	{Title: "Add Chapters", Description: "Upload and organize chapters", Href: "/admin/add-chapter"},
	{Title: "Add Bundles", Description: "Create collections or bundles", Href: "/admin/add-collection"},
}

// AdminDashboard lists the admin actions.
func (h *Handlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "admin_dashboard", h.page(r, "Admin Dashboard", map[string]any{"Actions": adminActions}))
}

// AdminProfile renders the signed-in administrator's profile.
func (h *Handlers) AdminProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.accounts.AdminProfile(r.Context())
	p := h.page(r, "Admin Profile", map[string]any{"Profile": profile})
	if err != nil {
		h.log(r).Warn("load admin profile failed", zap.Error(err))
		p.Flash.Error = backend.Message(err, account.MessageProfileFailed)
	}
	h.render(w, r, "admin_profile", p)
}

type usernameView struct {
	Status account.UsernameStatus
	Error  string
}

type signupView struct {
	Form     account.SignupForm
	Genders  []string
	Username usernameView
}

// AdminSignupPage renders the registration form. An htmx request carrying a
// username answers with the availability hint only.
func (h *Handlers) AdminSignupPage(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query(); q.Has("username") && mw.IsHTMX(r.Context()) {
		h.renderer.Fragment(w, r, "username_status", h.usernameStatus(r, q.Get("username")))
		return
	}
	h.render(w, r, "admin_signup", h.page(r, "Admin Registration", signupView{Genders: account.Genders}))
}

func (h *Handlers) usernameStatus(r *http.Request, username string) usernameView {
	status, err := h.accounts.CheckUsername(r.Context(), username)
	if err != nil {
		h.log(r).Info("username check failed", zap.Error(err))
		return usernameView{Error: account.MessageUsernameCheck}
	}
	return usernameView{Status: status}
}

// AdminSignup registers a new administrator.
func (h *Handlers) AdminSignup(w http.ResponseWriter, r *http.Request) {
	form := account.SignupForm{
		Username:        strings.TrimSpace(r.PostFormValue("username")),
		FullName:        r.PostFormValue("full_name"),
		Email:           r.PostFormValue("email"),
		PhoneNumber:     r.PostFormValue("phone_number"),
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("password_confirm"),
		Gender:          r.PostFormValue("gender"),
		Age:             r.PostFormValue("age"),
	}
	_, err := h.accounts.SignupAdmin(r.Context(), form)
	if err == nil {
		w.Header().Set("Refresh", "2; url=/admin/login")
		p := h.page(r, "Admin Registration", signupView{Genders: account.Genders})
		p.Flash.Message = messageSignupCreated
		h.render(w, r, "admin_signup", p)
		return
	}

	form.Password, form.PasswordConfirm = "", ""
	view := signupView{Form: form, Genders: account.Genders}
	p := h.page(r, "Admin Registration", view)
	status := http.StatusBadRequest
	var invalid *account.ValidationError
	if errors.As(err, &invalid) {
		p.Flash.Error = invalid.Message
		if invalid.Field == "username" {
			view.Username = usernameView{Error: invalid.Message}
			p.Body = view
		}
	} else {
		h.log(r).Warn("admin signup failed", zap.Error(err))
		p.Flash.Error = backend.Message(err, account.MessageSignupFailed)
		status = http.StatusBadGateway
	}
	h.renderStatus(w, r, status, "admin_signup", p)
}

type mangaFormView struct {
	Title       string
	Description string
	Authors     string
	Rating      string
	CoverURL    string
	Genres      []catalog.Genre
	ImageURL    string
}

// AdminMangaPage renders the add-manga form.
func (h *Handlers) AdminMangaPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "admin_manga", h.page(r, "Add Manga", mangaFormView{Genres: catalog.Genres()}))
}

// AdminCreateManga submits the add-manga form.
func (h *Handlers) AdminCreateManga(w http.ResponseWriter, r *http.Request) {
	view := mangaFormView{Genres: catalog.Genres()}
	p := h.page(r, "Add Manga", nil)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.adminFormFailed(w, r, "admin_manga", p, view, &content.FormError{Message: content.MessageImageInvalid}, "")
		return
	}
	view.Title = r.FormValue("title")
	view.Description = r.FormValue("description")
	view.Authors = r.FormValue("authors")
	view.Rating = r.FormValue("rating")
	view.CoverURL = r.FormValue("cover_image_url")

	cover, err := formImage(r, "cover_image")
	if err != nil {
		h.adminFormFailed(w, r, "admin_manga", p, view, err, "")
		return
	}
	rating, _ := strconv.ParseFloat(strings.TrimSpace(view.Rating), 64)
	result, err := h.content.CreateManga(r.Context(), content.MangaDraft{
		Title:       view.Title,
		Description: view.Description,
		Authors:     content.SplitList(view.Authors),
		Genres:      r.Form["genres"],
		Rating:      rating,
		Cover:       cover,
		CoverURL:    view.CoverURL,
	})
	if err != nil {
		h.adminFormFailed(w, r, "admin_manga", p, view, err, content.MessageMangaFailed)
		return
	}
	p.Body = mangaFormView{Genres: catalog.Genres(), ImageURL: result.ImageURL}
	p.Flash.Message = result.Message
	h.render(w, r, "admin_manga", p)
}

type titlesFormView struct {
	Titles   []catalog.Title
	ImageURL string
}

func (h *Handlers) titlesForm(r *http.Request, title string) web.Page {
	titles, err := h.catalog.AllTitles(r.Context())
	p := h.page(r, title, titlesFormView{Titles: titles})
	if err != nil {
		h.log(r).Warn("list titles failed", zap.Error(err))
		p.Flash.Error = messageMangaFailed
	}
	return p
}

// AdminVolumePage renders the add-volume form.
func (h *Handlers) AdminVolumePage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "admin_volume", h.titlesForm(r, "Add Volume"))
}

// AdminCreateVolume submits the add-volume form.
func (h *Handlers) AdminCreateVolume(w http.ResponseWriter, r *http.Request) {
	p := h.titlesForm(r, "Add Volume")
	view, _ := p.Body.(titlesFormView)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.adminFormFailed(w, r, "admin_volume", p, view, &content.FormError{Message: content.MessageImageInvalid}, "")
		return
	}
	cover, err := formImage(r, "cover_image")
	if err != nil {
		h.adminFormFailed(w, r, "admin_volume", p, view, err, "")
		return
	}
	mangaID := strings.TrimSpace(r.FormValue("manga_id"))
	number, _ := strconv.Atoi(strings.TrimSpace(r.FormValue("volume_number")))
	stock, _ := strconv.Atoi(strings.TrimSpace(r.FormValue("stock")))
	price, perr := decimal.NewFromString(strings.TrimSpace(r.FormValue("price")))
	if perr != nil {
		price = decimal.Zero
	}
	result, err := h.content.CreateVolume(r.Context(), content.VolumeDraft{
		MangaID:      mangaID,
		MangaTitle:   titleOf(view.Titles, mangaID),
		VolumeNumber: number,
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		Price:        price,
		Stock:        stock,
		Cover:        cover,
		CoverURL:     r.FormValue("cover_image_url"),
	})
	if err != nil {
		h.adminFormFailed(w, r, "admin_volume", p, view, err, content.MessageVolumeFailed)
		return
	}
	view.ImageURL = result.ImageURL
	p.Body = view
	p.Flash = web.Flash{Message: result.Message}
	h.render(w, r, "admin_volume", p)
}

// AdminChapterPage renders the add-chapter form.
func (h *Handlers) AdminChapterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "admin_chapter", h.titlesForm(r, "Add Chapter"))
}

// AdminAddChapter uploads a chapter's pages in submission order.
func (h *Handlers) AdminAddChapter(w http.ResponseWriter, r *http.Request) {
	p := h.titlesForm(r, "Add Chapter")
	view, _ := p.Body.(titlesFormView)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.adminFormFailed(w, r, "admin_chapter", p, view, &content.FormError{Message: content.MessageImageInvalid}, "")
		return
	}
	var images []content.Image
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["chapter_images"] {
			img, err := readImage(fh)
			if err != nil {
				h.adminFormFailed(w, r, "admin_chapter", p, view, err, "")
				return
			}
			images = append(images, img)
		}
	}
	result, err := h.content.AddChapter(r.Context(), content.ChapterDraft{
		MangaID:       r.FormValue("manga_id"),
		ChapterNumber: r.FormValue("chapter_number"),
		Images:        images,
	})
	if err != nil {
		h.adminFormFailed(w, r, "admin_chapter", p, view, err, content.MessageChapterFailed)
		return
	}
	p.Flash = web.Flash{Message: result.Message}
	h.render(w, r, "admin_chapter", p)
}

// AdminCollectionPage renders the add-collection form.
func (h *Handlers) AdminCollectionPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "admin_collection", h.titlesForm(r, "Add Collection"))
}

// AdminCreateCollection groups existing series under a name.
func (h *Handlers) AdminCreateCollection(w http.ResponseWriter, r *http.Request) {
	p := h.titlesForm(r, "Add Collection")
	view, _ := p.Body.(titlesFormView)
	if err := r.ParseForm(); err != nil {
		h.adminFormFailed(w, r, "admin_collection", p, view, &content.FormError{Message: content.MessageCollectionRequired}, "")
		return
	}
	result, err := h.content.CreateCollection(r.Context(), content.CollectionDraft{
		Name:     r.PostFormValue("name"),
		MangaIDs: r.PostForm["manga_ids"],
	})
	if err != nil {
		h.adminFormFailed(w, r, "admin_collection", p, view, err, content.MessageCollectionFailed)
		return
	}
	p.Flash = web.Flash{Message: result.Message}
	h.render(w, r, "admin_collection", p)
}

// adminFormFailed re-renders an admin form with the failure explained.
// Form problems are 400s; anything else came from the backend.
func (h *Handlers) adminFormFailed(w http.ResponseWriter, r *http.Request, name string, p web.Page, view any, err error, fallback string) {
	p.Body = view
	status := http.StatusBadRequest
	var formErr *content.FormError
	if errors.As(err, &formErr) {
		p.Flash = web.Flash{Error: formErr.Message}
	} else {
		h.log(r).Warn("admin submission failed", zap.String("form", name), zap.Error(err))
		p.Flash = web.Flash{Error: backend.Message(err, fallback)}
		status = http.StatusBadGateway
	}
	h.renderStatus(w, r, status, name, p)
}

// formImage reads the optional single file field. An absent or empty file is nil.
func formImage(r *http.Request, field string) (*content.Image, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 || files[0].Size == 0 {
		return nil, nil
	}
	img, err := readImage(files[0])
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func readImage(fh *multipart.FileHeader) (content.Image, error) {
	if fh.Size > content.MaxImageBytes {
		return content.Image{}, &content.FormError{Message: content.MessageImageInvalid}
	}
	f, err := fh.Open()
	if err != nil {
		return content.Image{}, fmt.Errorf("handlers: open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, content.MaxImageBytes+1))
	if err != nil {
		return content.Image{}, fmt.Errorf("handlers: read upload: %w", err)
	}
	return content.Image{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func titleOf(titles []catalog.Title, mangaID string) string {
	for _, t := range titles {
		if t.MangaID == mangaID {
			return t.Title
		}
	}
	return ""
}
