package webui

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

type usersDataItem struct {
	Username  string
	CreatedAt string
}

type usersData struct {
	Users []usersDataItem
}

type usersDataBuilder struct{}

func (usersDataBuilder) Build(ctx context.Context, bc builderCtx) (any, error) {
	users, err := bc.Config.UserManager.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	items := make([]usersDataItem, 0, len(users))
	for _, u := range users {
		items = append(items, usersDataItem{
			Username:  u.Username,
			CreatedAt: u.CreatedAt.UTC().Format("2006-01-02 15:04 MST"),
		})
	}
	return &usersData{Users: items}, nil
}

func usersPage(log *slog.Logger, cfg *Config, templ *templator) (http.Handler, error) {
	return newPage(log, cfg, pageOptions{}, templ, usersDataBuilder{}, "users")
}
