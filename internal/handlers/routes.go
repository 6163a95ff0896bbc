package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// legacyAdminPaths maps the old camelCase admin URLs onto the current ones.
var legacyAdminPaths = map[string]string{
	"/addManga":      "/admin/add-manga",
	"/addVolume":     "/admin/add-volume",
	"/addChapter":    "/admin/add-chapter",
	"/addCollection": "/admin/add-collection",
}

// Mount registers the storefront pages and form posts on r.
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/", h.Home)
	r.Get("/manga", h.MangaList)
	r.Get("/manga/{series}", h.Series)
	r.Get("/volume/{vol}", h.Volume)
	r.Get("/genres", h.Genres)
	r.Get("/genres/{genre}", h.Genre)
	r.Get("/search", h.Search)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.Cart)
		r.Post("/add", h.CartAdd)
		r.Post("/update", h.CartUpdate)
		r.Post("/remove", h.CartRemove)
		r.Post("/clear", h.CartClear)
		r.Post("/set", h.CartSet)
	})

	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/signup", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	r.Get("/profile", h.Profile)
	r.Post("/profile/addresses", h.AddAddress)
	r.Post("/profile/addresses/{id}/delete", h.RemoveAddress)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/", h.AdminDashboard)
		r.Get("/login", h.AdminLoginPage)
		r.Post("/login", h.AdminLogin)
		r.Get("/signup", h.AdminSignupPage)
		r.Post("/signup", h.AdminSignup)
		r.Get("/profile", h.AdminProfile)
		r.Get("/add-manga", h.AdminMangaPage)
		r.Post("/add-manga", h.AdminCreateManga)
		r.Get("/add-volume", h.AdminVolumePage)
		r.Post("/add-volume", h.AdminCreateVolume)
		r.Get("/add-chapter", h.AdminChapterPage)
		r.Post("/add-chapter", h.AdminAddChapter)
		r.Get("/add-collection", h.AdminCollectionPage)
		r.Post("/add-collection", h.AdminCreateCollection)
		for from, to := range legacyAdminPaths {
			r.Get(from, permanentRedirect(to))
		}
	})
}

// MountAPI registers the JSON cart API on r, typically under /api/cart.
func (h *Handlers) MountAPI(r chi.Router) {
	r.Get("/", h.APIGetCart)
	r.Delete("/", h.APIClearCart)
	r.Post("/items", h.APIAddItem)
	r.Patch("/items/{volumeID}", h.APIUpdateItem)
	r.Delete("/items/{volumeID}", h.APIRemoveItem)
}

func permanentRedirect(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	}
}
