package admin

import (
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	dto "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/dto/provider"
	httperrors "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/errors"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/helpers"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/identity"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/loginlog"
)

// LinksController maneja el listado, las estadísticas y la baja admin de vínculos.
type LinksController struct {
	identity identity.Service
}

func NewLinksController(ident identity.Service) *LinksController {
	return &LinksController{identity: ident}
}

// List maneja GET /api/provider/users
func (c *LinksController) List(w http.ResponseWriter, r *http.Request) {
	page := helpers.QueryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := helpers.QueryInt(r, "perPage", loginlog.DefaultPerPage)
	if perPage < loginlog.MinPerPage {
		perPage = loginlog.MinPerPage
	}
	if perPage > loginlog.MaxPerPage {
		perPage = loginlog.MaxPerPage
	}

	rows, total, err := c.identity.ListLinks(r.Context(), repository.LinkFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	})
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	items := make([]dto.LinkItem, 0, len(rows))
	for _, l := range rows {
		items = append(items, dto.LinkItem{
			ID:             l.ID,
			UserID:         l.UserID,
			Username:       l.Username,
			ProviderUserID: l.ProviderUserID,
			DisplayName:    l.DisplayName,
			AvatarURL:      l.AvatarURL,
			OrganizationID: l.OrganizationID,
			CreatedAt:      l.CreatedAt,
			UpdatedAt:      l.UpdatedAt,
		})
	}
	helpers.WriteJSON(w, http.StatusOK, dto.LinksPage{
		Success: true,
		Data:    items,
		Meta: dto.PageMeta{
			Total:      total,
			Page:       page,
			PerPage:    perPage,
			TotalPages: int((total + int64(perPage) - 1) / int64(perPage)),
		},
	})
}

// Stats maneja GET /api/provider/stats
func (c *LinksController) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := c.identity.Stats(r.Context())
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	pct := 0.0
	if st.TotalUsers > 0 {
		pct = math.Round(float64(st.BoundUsers)/float64(st.TotalUsers)*1000) / 10
	}
	helpers.WriteSuccess(w, "", dto.Stats{
		TotalUsers: st.TotalUsers,
		BoundUsers: st.BoundUsers,
		Percentage: pct,
	})
}

// Unbind maneja DELETE /api/provider/users/{id}/unbind (id = id del vínculo)
func (c *LinksController) Unbind(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("missing link id"))
		return
	}
	if err := c.identity.UnbindLink(r.Context(), id); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteSuccess(w, "解绑成功", nil)
}
