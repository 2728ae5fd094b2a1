package api

import (
	"embed"
	"html/template"
	"net/http"

	"bank-dashboard/pkg/transaction"

	"go.uber.org/zap"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTemplate = template.Must(
	template.New("dashboard.html").
		Funcs(template.FuncMap{
			"category": func(r transaction.Record) string { return r.CategoryPath(" / ") },
		}).
		ParseFS(templateFS, "templates/dashboard.html"),
)

type dashboardView struct {
	IsLoading bool
	Groups    []transaction.Group
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	state := s.store.State()
	view := dashboardView{
		IsLoading: state.IsLoading,
		Groups:    transaction.GroupByAccount(state.Records),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, view); err != nil {
		s.logger.Error("failed to render dashboard", zap.Error(err))
	}
}
